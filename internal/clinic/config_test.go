package clinic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupProcedure(t *testing.T) {
	p := LookupProcedure("cleaning")
	assert.Equal(t, "Чистка лица", p.Name)
	assert.Contains(t, p.KBQuery, "чистке лица")

	unknown := LookupProcedure("laser")
	assert.Equal(t, "Процедура", unknown.Name)
	assert.Equal(t, "информация о процедуре laser", unknown.KBQuery)
}

func TestProceduresIsACopy(t *testing.T) {
	list := Procedures()
	require.Len(t, list, 6)
	list[0].Name = "changed"
	assert.Equal(t, "Чистка лица", Procedures()[0].Name)
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Minsk", loc.String())

	_, err = LoadLocation("Mars/Olympus")
	assert.Error(t, err)
}
