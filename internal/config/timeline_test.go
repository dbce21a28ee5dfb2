package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleMappings = `
datetime_format: "Y-m-d"
limit: 5
timeline_icons:
  created: heroicon-m-plus
timeline_icon_colors:
  deleted: danger
subject_translations:
  'App\Models\Post': Article
property_translates:
  'App\Models\Post':
    title: Headline
causers:
  'App\Models\Admin': admins
subjects:
  posts:
    type: 'App\Models\Post'
    table: posts
    relations:
      - name: comments
        type: 'App\Models\Comment'
        table: comments
        foreign_key: post_id
`

func TestParseMappingsKeepsClassNameKeys(t *testing.T) {
	mappings, err := ParseMappings([]byte(sampleMappings))
	require.NoError(t, err)

	require.Equal(t, "Article", mappings.SubjectTranslations[`App\Models\Post`])
	require.Equal(t, "Headline", mappings.PropertyTranslates[`App\Models\Post`]["title"])

	posts := mappings.Subjects["posts"]
	require.Equal(t, "posts", posts.Table)
	relation, ok := posts.Relation("comments")
	require.True(t, ok)
	require.Equal(t, "post_id", relation.ForeignKey)

	_, ok = posts.Relation("tags")
	require.False(t, ok)
}

func TestParseMappingsRejectsInvalidYAML(t *testing.T) {
	_, err := ParseMappings([]byte("subjects: [unclosed"))
	require.Error(t, err)
}

func TestLoadMappingsToleratesMissingFile(t *testing.T) {
	mappings, err := LoadMappings(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Empty(t, mappings.Subjects)
}

func TestApplyAndDefaults(t *testing.T) {
	mappings, err := ParseMappings([]byte(sampleMappings))
	require.NoError(t, err)

	settings := Timeline{DateTimeFormat: DefaultDateTimeFormat, Limit: 10, Locale: "cs"}
	settings.Apply(mappings)
	settings = settings.WithDefaults()

	require.Equal(t, "Y-m-d", settings.DateTimeFormat)
	require.Equal(t, 5, settings.Limit)
	require.Equal(t, "cs", settings.Locale)
	require.Equal(t, time.UTC, settings.Location)

	require.Equal(t, "heroicon-m-plus", settings.Icon("created"))
	require.Equal(t, DefaultIcon, settings.Icon("restored"))
	require.Equal(t, "danger", settings.IconColor("deleted"))
	require.Equal(t, DefaultIconColor, settings.IconColor("updated"))

	// A configured causer map replaces the default users table.
	_, ok := settings.TableFor(DefaultCauserType)
	require.False(t, ok)
	table, ok := settings.TableFor(`App\Models\Admin`)
	require.True(t, ok)
	require.Equal(t, "admins", table)
}

func TestTableForResolvesSubjectsAndRelations(t *testing.T) {
	mappings, err := ParseMappings([]byte(sampleMappings))
	require.NoError(t, err)

	var settings Timeline
	settings.Apply(mappings)

	table, ok := settings.TableFor(`App\Models\Post`)
	require.True(t, ok)
	require.Equal(t, "posts", table)

	table, ok = settings.TableFor(`App\Models\Comment`)
	require.True(t, ok)
	require.Equal(t, "comments", table)

	_, ok = settings.TableFor(`App\Models\Tag`)
	require.False(t, ok)
}

func TestWithDefaultsRegistersDefaultCauser(t *testing.T) {
	settings := Timeline{}.WithDefaults()

	require.Equal(t, DefaultDateTimeFormat, settings.DateTimeFormat)
	require.Equal(t, DefaultLimit, settings.Limit)
	require.Equal(t, DefaultLocale, settings.Locale)

	table, ok := settings.TableFor(DefaultCauserType)
	require.True(t, ok)
	require.Equal(t, DefaultCauserTable, table)
}
