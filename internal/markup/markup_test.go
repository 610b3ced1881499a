package markup

import (
	"errors"
	"testing"

	"github.com/BearBump/DispatchBox/internal/models"
	"github.com/stretchr/testify/require"
)

type attrs map[string]string

func (a attrs) Attr(name string) (string, bool) {
	v, ok := a[name]
	return v, ok
}

func TestNormalizePhone(t *testing.T) {
	require.Equal(t, "5550123456", NormalizePhone("+1 (555) 012-3456"))
	require.Equal(t, "9161234567", NormalizePhone("8 (916) 123-45-67"))
	require.Equal(t, "12345", NormalizePhone("12-34-5"))
	require.Equal(t, "", NormalizePhone("no digits"))

	for _, in := range []string{"+7 999 000 11 22 33", "1234567890123", "(000)"} {
		out := NormalizePhone(in)
		require.LessOrEqual(t, len(out), 10)
		for _, r := range out {
			require.True(t, r >= '0' && r <= '9')
		}
	}
}

func TestReadOrder_SinglePoint(t *testing.T) {
	o, err := ReadOrder(attrs{
		"dsta-matter":                     "Documents",
		"dsta-point0_address":             "123 Main St",
		"dsta-point0_phone":               "+1 (555) 012-3456",
		"dsta-point0_weight":              "2",
		"dsta-point0_required_time_start": "2024-05-01 10:00:00",
		"dsta-point0_required_time":       "2024-05-01 12:00:00",
	})
	require.NoError(t, err)
	require.Equal(t, "Documents", o.Matter)
	require.Zero(t, o.Insurance)
	require.Len(t, o.Points, 1)
	require.Equal(t, models.OrderPoint{
		Address:           "123 Main St",
		Phone:             "5550123456",
		Weight:            2,
		RequiredTimeStart: "2024-05-01 10:00:00",
		RequiredTime:      "2024-05-01 12:00:00",
	}, o.Points[0])
}

func TestReadOrder_StopsAtFirstMissingAddress(t *testing.T) {
	o, err := ReadOrder(attrs{
		"dsta-matter":         "Flowers",
		"dsta-insurance":      "1500",
		"dsta-point0_address": "A",
		"dsta-point1_address": "B",
		"dsta-point1_taking":  "300",
		"dsta-point3_address": "D",
	})
	require.NoError(t, err)
	require.Equal(t, 1500.0, o.Insurance)
	require.Len(t, o.Points, 2)
	require.Equal(t, "B", o.Points[1].Address)
	require.NotNil(t, o.Points[1].Taking)
	require.Equal(t, 300.0, *o.Points[1].Taking)
	require.Nil(t, o.Points[0].Taking)
}

func TestReadOrder_ZeroTakingIsKept(t *testing.T) {
	o, err := ReadOrder(attrs{
		"dsta-matter":         "x",
		"dsta-point0_address": "A",
		"dsta-point0_taking":  "0",
	})
	require.NoError(t, err)
	require.NotNil(t, o.Points[0].Taking)
	require.Zero(t, *o.Points[0].Taking)
}

func TestReadOrder_NoPickupKeepsEmptyPoint(t *testing.T) {
	o, err := ReadOrder(attrs{"dsta-matter": "x", "dsta-point0_phone": "123"})
	require.NoError(t, err)
	require.Len(t, o.Points, 1)
	require.Equal(t, models.OrderPoint{}, o.Points[0])
}

func TestReadOrder_EmptyAttrIsAbsent(t *testing.T) {
	o, err := ReadOrder(attrs{"dsta-matter": "x", "dsta-point0_address": ""})
	require.NoError(t, err)
	require.Empty(t, o.Points[0].Address)
}

func TestReadOrder_InvalidNumber(t *testing.T) {
	o, err := ReadOrder(attrs{
		"dsta-matter":         "x",
		"dsta-point0_address": "A",
		"dsta-point0_weight":  "heavy",
	})
	require.Error(t, err)

	var de *DecodeError
	require.True(t, errors.As(err, &de))
	require.Len(t, de.Fields, 1)
	require.Equal(t, "point[0].weight", de.Fields[0].Field)
	require.Contains(t, err.Error(), "not a number")
	require.Equal(t, "A", o.Points[0].Address)
}

func TestReadOrder_TenPointsMax(t *testing.T) {
	a := attrs{"dsta-matter": "x"}
	for i := 0; i < 12; i++ {
		a[Prefix+pointPrefix(i)+"address"] = "addr"
	}
	o, err := ReadOrder(a)
	require.NoError(t, err)
	require.Len(t, o.Points, models.MaxPoints)
}

func TestMergeCombo_SharedPickupSumsWeights(t *testing.T) {
	item := func(w string) Element {
		return attrs{
			"dsta-matter":         "Cake",
			"dsta-point0_address": "Bakery",
			"dsta-point0_weight":  w,
		}
	}
	o, err := MergeCombo([]Element{item("1"), item("2"), item("3")})
	require.NoError(t, err)
	require.Len(t, o.Points, 1)
	require.Equal(t, 6.0, o.Points[0].Weight)
}

func TestMergeCombo_MatterInsuranceAndRemainder(t *testing.T) {
	o, err := MergeCombo([]Element{
		attrs{
			"dsta-insurance":      "100",
			"dsta-point0_address": "Shop",
			"dsta-point0_weight":  "1",
			"dsta-point1_address": "Client 1",
		},
		attrs{
			"dsta-matter":         "Gifts",
			"dsta-insurance":      "50",
			"dsta-point0_address": "Shop",
			"dsta-point0_weight":  "4",
			"dsta-point1_address": "Client 2",
		},
		attrs{
			"dsta-matter":         "Ignored",
			"dsta-point0_address": "Other shop",
			"dsta-point0_weight":  "2",
		},
	})
	require.NoError(t, err)
	require.Equal(t, "Gifts", o.Matter)
	require.Equal(t, 150.0, o.Insurance)

	addrs := make([]string, 0, len(o.Points))
	for _, p := range o.Points {
		addrs = append(addrs, p.Address)
	}
	require.Equal(t, []string{"Shop", "Client 1", "Client 2", "Other shop"}, addrs)
	require.Equal(t, 5.0, o.Points[0].Weight)
}

func TestMergeCombo_Empty(t *testing.T) {
	o, err := MergeCombo(nil)
	require.NoError(t, err)
	require.Empty(t, o.Matter)
	require.Empty(t, o.Points)
}

const comboPage = `
<div class="DostavistaCombo" id="lunch">
  <input type="checkbox" class="DostavistaComboCheckbox" checked
    dsta-matter="Lunch" dsta-point0_address="Kitchen" dsta-point0_weight="1">
  <input type="checkbox" class="DostavistaComboCheckbox"
    dsta-matter="Dinner" dsta-point0_address="Kitchen" dsta-point0_weight="5">
  <input type="checkbox" class="DostavistaComboCheckbox" checked disabled
    dsta-matter="Breakfast" dsta-point0_address="Kitchen" dsta-point0_weight="7">
  <input type="checkbox" class="DostavistaComboCheckbox" checked
    dsta-point0_address="Kitchen" dsta-point0_weight="2">
  <button class="DostavistaComboSubmit" id="lunch-submit">Order</button>
</div>
<a class="DostavistaButton" id="docs" dsta-matter="Documents" dsta-point0_address="A"></a>
`

func TestPage_TargetButton(t *testing.T) {
	p, err := ParseString(comboPage)
	require.NoError(t, err)

	tg, err := p.Target("docs")
	require.NoError(t, err)
	require.Equal(t, models.ControlButton, tg.Kind)
	require.Len(t, tg.Items, 1)

	o, err := ReadOrder(tg.Items[0])
	require.NoError(t, err)
	require.Equal(t, "Documents", o.Matter)
	require.Len(t, p.Buttons(), 1)
}

func TestPage_TargetCombo(t *testing.T) {
	p, err := ParseString(comboPage)
	require.NoError(t, err)

	for _, id := range []string{"lunch", "lunch-submit"} {
		tg, err := p.Target(id)
		require.NoError(t, err)
		require.Equal(t, models.ControlCombo, tg.Kind)
		require.Equal(t, "lunch", tg.ID)
		require.Len(t, tg.Items, 2)
		require.Equal(t, 1, tg.Sel.Length())

		o, err := MergeCombo(tg.Items)
		require.NoError(t, err)
		require.Equal(t, "Lunch", o.Matter)
		require.Len(t, o.Points, 1)
		require.Equal(t, 3.0, o.Points[0].Weight)
	}
}

func TestPage_TargetNotFound(t *testing.T) {
	p, err := ParseString(comboPage)
	require.NoError(t, err)

	_, err = p.Target("nope")
	require.ErrorIs(t, err, ErrControlNotFound)
}

func TestPage_SingleControlWithoutID(t *testing.T) {
	p, err := ParseString(`<a class="DostavistaButton" dsta-matter="m"></a>`)
	require.NoError(t, err)

	tg, err := p.Target("")
	require.NoError(t, err)
	require.Equal(t, models.ControlButton, tg.Kind)
	require.Empty(t, tg.ID)
}

func TestPage_Combos(t *testing.T) {
	p, err := ParseString(comboPage + `<div class="DostavistaCombo"><button class="DostavistaComboSubmit" id="bare-submit"></button></div>`)
	require.NoError(t, err)

	combos := p.Combos()
	require.Len(t, combos, 2)
	require.Equal(t, "lunch", combos[0].ID)
	require.Len(t, combos[0].Items, 2)
	require.Equal(t, "bare-submit", combos[1].ID)
	require.Empty(t, combos[1].Items)

	tg, err := p.Target("bare-submit")
	require.NoError(t, err)
	require.Equal(t, "bare-submit", tg.ID)
}
