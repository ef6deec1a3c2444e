package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityLookup(t *testing.T) {
	cats := DefaultCategories()

	assert.Equal(t, SeverityCritical, cats.SeverityOf("person"))
	assert.Equal(t, SeverityCritical, cats.SeverityOf("PERSON"), "lookup should be case-insensitive")
	assert.Equal(t, SeverityWarning, cats.SeverityOf("chair"))
	assert.Equal(t, SeverityInfo, cats.SeverityOf("door"))
	assert.Equal(t, SeverityNone, cats.SeverityOf("unicorn"))

	assert.True(t, cats.IsCritical("dog"))
	assert.False(t, cats.IsCritical("bench"))
}

func TestSeverityLookupBuiltLazily(t *testing.T) {
	cats := CategoriesConfig{
		Critical: []string{"person"},
	}
	// No buildLookup call; SeverityOf must still work after YAML decoding.
	assert.Equal(t, SeverityCritical, cats.SeverityOf("person"))
}

func TestCategoriesValidate(t *testing.T) {
	ok := DefaultCategories()
	assert.NoError(t, ok.Validate())

	empty := CategoriesConfig{}
	err := empty.Validate()
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))

	overlap := CategoriesConfig{
		Critical: []string{"person", "chair"},
		Warning:  []string{"chair"},
	}
	err = overlap.Validate()
	assert.Error(t, err, "label in two sets must be rejected")
	assert.Contains(t, err.Error(), "chair")

	blank := CategoriesConfig{
		Critical: []string{"person", "  "},
	}
	assert.Error(t, blank.Validate(), "blank label must be rejected")
}
