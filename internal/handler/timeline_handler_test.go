package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-activity-timeline/internal/dto"
	"github.com/noah-isme/gema-activity-timeline/internal/service"
)

type stubTimelineService struct {
	response dto.TimelineResponse
	markup   string
	err      error
	last     dto.TimelineRequest
}

func (s *stubTimelineService) Build(_ context.Context, req dto.TimelineRequest, _ service.Options) (dto.TimelineResponse, error) {
	s.last = req
	return s.response, s.err
}

func (s *stubTimelineService) RenderPanel(_ context.Context, req dto.TimelineRequest, _ service.Options) (string, error) {
	s.last = req
	return s.markup, s.err
}

func (s *stubTimelineService) Invalidate(context.Context) error {
	return nil
}

func sampleResponse() dto.TimelineResponse {
	return dto.TimelineResponse{
		Subject:     dto.TimelineSubject{Alias: "posts", Type: `App\Models\Post`, ID: 1, Label: "Post", Exists: true},
		Locale:      "en",
		Heading:     "Activity log",
		Description: "Showing the last 10 changes",
		Limit:       10,
		Entries: []dto.TimelineEntryResponse{{
			ID:           3,
			Event:        "updated",
			EventLabel:   "updated",
			Icon:         "heroicon-m-check",
			Color:        "primary",
			BatchUUID:    "4b9c5a1e-0d7f-4c4e-9a51-3f1d2c8e7b60",
			SubjectType:  `App\Models\Post`,
			SubjectID:    1,
			SubjectLabel: "Post",
			CauserName:   "Eve",
			Title:        "<strong>Post #1</strong> was <strong>updated</strong> by <strong>Eve</strong>.",
			Sentence:     "<strong>Eve</strong> updated the following values: <br>- name from <strong>Alice</strong> to <strong>Bob</strong>",
			Since:        "2 hours ago",
			Changes: []dto.TimelineChange{
				{Key: "name", Old: "Alice", New: "Bob", Kind: "modified", Text: "- name from Alice to Bob"},
			},
			UpdatedAt: time.Date(2024, 5, 1, 9, 15, 0, 0, time.UTC),
		}},
	}
}

func newTimelineApp(svc service.TimelineService) *fiber.App {
	app := fiber.New()
	NewTimelineHandler(svc, []string{"cs", "en"}, zerolog.Nop()).Register(app.Group("/api/v1/timeline"))
	return app
}

func TestTimelineContract(t *testing.T) {
	schemaPath, err := filepath.Abs(filepath.Join("testdata", "timeline.schema.json"))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	schema, err := compiler.Compile("file://" + filepath.ToSlash(schemaPath))
	require.NoError(t, err)

	stub := &stubTimelineService{response: sampleResponse()}
	app := newTimelineApp(stub)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/timeline/posts/1?relations=comments,%20tags&limit=10&locale=en", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))

	require.Equal(t, dto.TimelineRequest{
		Subject:   "posts",
		SubjectID: 1,
		Relations: []string{"comments", "tags"},
		Limit:     10,
		Locale:    "en",
	}, stub.last)
}

func TestTimelineLocaleFromAcceptLanguage(t *testing.T) {
	stub := &stubTimelineService{response: sampleResponse()}
	app := newTimelineApp(stub)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/timeline/posts/1", nil)
	req.Header.Set("Accept-Language", "cs-CZ;q=0.9, cs;q=0.8")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "cs", stub.last.Locale)
}

func TestTimelineErrorMapping(t *testing.T) {
	validationErr := validator.New().Struct(dto.TimelineRequest{Subject: "posts", SubjectID: 1, Limit: 500})
	require.Error(t, validationErr)

	cases := []struct {
		name   string
		path   string
		err    error
		status int
	}{
		{"invalid id", "/api/v1/timeline/posts/abc", nil, http.StatusBadRequest},
		{"zero id", "/api/v1/timeline/posts/0", nil, http.StatusBadRequest},
		{"invalid limit", "/api/v1/timeline/posts/1?limit=many", nil, http.StatusBadRequest},
		{"validation", "/api/v1/timeline/posts/1?limit=500", validationErr, http.StatusBadRequest},
		{"unknown subject", "/api/v1/timeline/invoices/1", fmt.Errorf("%w: invoices", service.ErrUnknownSubject), http.StatusNotFound},
		{"unknown relation", "/api/v1/timeline/posts/1?relations=tags", fmt.Errorf("%w: tags", service.ErrUnknownRelation), http.StatusBadRequest},
		{"internal", "/api/v1/timeline/posts/1", fmt.Errorf("database offline"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newTimelineApp(&stubTimelineService{err: tc.err})
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tc.path, nil))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestTimelineValidationDetails(t *testing.T) {
	validationErr := validator.New().Struct(dto.TimelineRequest{Subject: "posts", SubjectID: 1, Limit: 500})
	app := newTimelineApp(&stubTimelineService{err: validationErr})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/timeline/posts/1?limit=500", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload struct {
		Success bool              `json:"success"`
		Details map[string]string `json:"details"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.False(t, payload.Success)
	require.Equal(t, "max", payload.Details["Limit"])
}

func TestTimelinePanelServesHTML(t *testing.T) {
	stub := &stubTimelineService{markup: `<section class="activity-timeline"></section>`}
	app := newTimelineApp(stub)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/timeline/posts/1/html?locale=cs", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, stub.markup, string(body))
	require.Equal(t, "cs", stub.last.Locale)
}
