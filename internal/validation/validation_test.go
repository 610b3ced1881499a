package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/BearBump/DispatchBox/internal/models"
	"github.com/stretchr/testify/require"
)

func validPoint() models.OrderPoint {
	return models.OrderPoint{
		Address:           "123 Main St",
		Phone:             "5550123456",
		Weight:            2,
		RequiredTimeStart: "2024-05-01 10:00:00",
		RequiredTime:      "2024-05-01 12:00:00",
	}
}

func TestValidate_OK(t *testing.T) {
	o := models.Order{Matter: "Documents", Points: []models.OrderPoint{validPoint(), validPoint()}}
	require.NoError(t, Validate(o))
}

func TestValidate_EmptyMatter(t *testing.T) {
	for _, pts := range [][]models.OrderPoint{nil, {validPoint()}, {{}}} {
		err := Validate(models.Order{Points: pts})
		require.Error(t, err)
		require.Contains(t, err.Error(), "matter")
	}
}

func TestValidate_AccumulatesEverything(t *testing.T) {
	bad := validPoint()
	bad.Phone = "12345"
	bad.RequiredTime = "2024-05-01T12:00:00"
	bad.Weight = 0

	err := Validate(models.Order{Points: []models.OrderPoint{validPoint(), bad, {}}})
	var ve *Error
	require.True(t, errors.As(err, &ve))

	require.Equal(t, []string{
		"matter is not set",
		"point[1].phone must consist of 10 digits",
		"point[1].required_time must be in YYYY-MM-DD HH:MM:SS format",
		"point[1].weight is not set",
		"point[2].address is not set",
		"point[2].phone must consist of 10 digits",
		"point[2].required_time_start must be in YYYY-MM-DD HH:MM:SS format",
		"point[2].required_time must be in YYYY-MM-DD HH:MM:SS format",
		"point[2].weight is not set",
	}, ve.Problems)
	require.Equal(t, strings.Join(ve.Problems, "\n"), err.Error())
}

func TestValidate_PreProblemsFirst(t *testing.T) {
	err := Validate(models.Order{Matter: "m", Points: []models.OrderPoint{validPoint()}}, `point[0].weight: not a number ("x")`)
	require.Error(t, err)
	require.True(t, strings.HasPrefix(err.Error(), "point[0].weight: not a number"))
}

func TestValidate_PointCount(t *testing.T) {
	err := Validate(models.Order{Matter: "m"})
	require.ErrorContains(t, err, "no points")

	pts := make([]models.OrderPoint, models.MaxPoints+1)
	for i := range pts {
		pts[i] = validPoint()
	}
	err = Validate(models.Order{Matter: "m", Points: pts})
	require.ErrorContains(t, err, "max 10")
}
