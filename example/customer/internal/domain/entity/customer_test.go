package entity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/csvload/example/customer/internal/domain/entity"
	"github.com/tigerroll/csvload/pkg/batch/component/step/reader"
	"github.com/tigerroll/csvload/pkg/batch/support/util/exception"
)

func record(values ...string) reader.RawRecord {
	names := []string{"id", "firstName", "lastName", "email", "gender", "contact", "country", "dob"}
	return reader.RawRecord{Names: names, Values: values, Number: 1, Line: 1}
}

func TestNewMapper_MapsEveryField(t *testing.T) {
	c, err := entity.NewMapper().Map(context.Background(), record("1", "Ann", "Lee", "a@x.com", "f", "555", "US", "1990-01-01"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), c.ID)
	assert.Equal(t, "Ann", c.FirstName)
	assert.Equal(t, "Lee", c.LastName)
	assert.Equal(t, "a@x.com", c.Email)
	assert.Equal(t, entity.GenderFemale, c.Gender)
	assert.Equal(t, "555", c.Contact)
	assert.Equal(t, "US", c.Country)
	require.NotNil(t, c.Dob)
	assert.Equal(t, time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), *c.Dob)
}

func TestNewMapper_EmptyOptionalFields(t *testing.T) {
	c, err := entity.NewMapper().Map(context.Background(), record("", "Bo", "", "", "", "", "", ""))
	require.NoError(t, err)
	assert.Zero(t, c.ID)
	assert.Empty(t, c.Gender)
	assert.Nil(t, c.Dob)

	params := entity.Parameters(c)
	assert.Nil(t, params["dob"])
	assert.Nil(t, params["gender"])
	assert.Equal(t, "Bo", params["firstName"])
}

func TestNewMapper_BadDate(t *testing.T) {
	_, err := entity.NewMapper().Map(context.Background(), record("7", "Ann", "Lee", "a@x.com", "F", "555", "US", "01/01/1990"))
	require.Error(t, err)

	var fme *exception.FieldMappingError
	require.True(t, errors.As(err, &fme))
	assert.Equal(t, "dob", fme.Field)
	assert.Equal(t, "01/01/1990", fme.Value)
}

func TestNewMapper_UnknownGender(t *testing.T) {
	_, err := entity.NewMapper().Map(context.Background(), record("7", "Ann", "Lee", "a@x.com", "X", "555", "US", ""))
	assert.ErrorIs(t, err, exception.ErrFieldMapping)
}

func TestParameters_CoverAttributes(t *testing.T) {
	params := entity.Parameters(entity.Customer{FirstName: "Ann"})
	for _, attr := range entity.Attributes {
		assert.Contains(t, params, attr)
	}
}
