// Package forecast projects a daily series forward with a least squares line.
package forecast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/wdm0006/nimbus/pkg/frame"
)

// DefaultHorizon is the number of days predicted when the caller passes <= 0.
const DefaultHorizon = 30

const (
	DateColumn  = "date"
	ValueColumn = "value"
)

// Point is one predicted day.
type Point struct {
	Date  string
	Value float64
}

// Result holds predictions in ascending date order. It marshals as a JSON
// object keyed by date, keys in that order.
type Result []Point

func (r Result) Get(date string) (float64, bool) {
	for _, p := range r {
		if p.Date == date {
			return p.Value, true
		}
	}
	return 0, false
}

func (r Result) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(p.Date))
		buf.WriteByte(':')
		v, err := json.Marshal(p.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type observation struct {
	day   time.Time
	value float64
}

// Forecast fits value against date and predicts the horizon days after the
// latest date, rounded to two decimals. Rows with an unparsable date or a
// missing or non-numeric value are ignored; if none remain the error is
// frame.ErrNoValidData.
func Forecast(f *frame.Frame, horizon int) (Result, error) {
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	dateCol, ok := f.ColumnByName(DateColumn)
	if !ok {
		return nil, frame.MissingColumn("forecast", DateColumn)
	}
	valueCol, ok := f.ColumnByName(ValueColumn)
	if !ok {
		return nil, frame.MissingColumn("forecast", ValueColumn)
	}
	dates := frame.ToTimeColumn(dateCol)
	obs := make([]observation, 0, f.Rows())
	for i := 0; i < f.Rows(); i++ {
		d, ok := dates.Get(i)
		if !ok {
			continue
		}
		v, ok := numeric(valueCol.Value(i))
		if !ok {
			continue
		}
		obs = append(obs, observation{day: frame.Day(d), value: v})
	}
	if len(obs) == 0 {
		return nil, frame.ErrNoValidData
	}
	sort.SliceStable(obs, func(a, b int) bool { return obs[a].day.Before(obs[b].day) })

	first := obs[0].day
	x := make([]float64, len(obs))
	y := make([]float64, len(obs))
	for i, o := range obs {
		x[i] = daysBetween(first, o.day)
		y[i] = o.value
	}
	alpha, beta := fit(x, y)
	if !finite(alpha) || !finite(beta) {
		return nil, fmt.Errorf("forecast: %w: trend line does not fit in float64", frame.ErrNoValidData)
	}

	last := obs[len(obs)-1].day
	out := make(Result, horizon)
	for i := range out {
		day := last.AddDate(0, 0, i+1)
		pred := alpha + beta*daysBetween(first, day)
		if !finite(pred) {
			return nil, fmt.Errorf("forecast: %w: prediction for %s overflows", frame.ErrNoValidData, frame.FormatDate(day))
		}
		v, _ := decimal.NewFromFloat(pred).RoundBank(2).Float64()
		out[i] = Point{Date: frame.FormatDate(day), Value: v}
	}
	return out, nil
}

// fit returns intercept and slope. Without spread in x the line is flat at
// the mean of y.
func fit(x, y []float64) (alpha, beta float64) {
	if stat.Variance(x, nil) == 0 || len(x) < 2 {
		return stat.Mean(y, nil), 0
	}
	return stat.LinearRegression(x, y, nil, false)
}

func daysBetween(a, b time.Time) float64 {
	return b.Sub(a).Hours() / 24
}

// numeric accepts finite numbers only; NaN and infinities are skipped like
// missing values.
func numeric(v any) (float64, bool) {
	switch t := v.(type) {
	case int64:
		return float64(t), true
	case float64:
		return t, finite(t)
	case string:
		x, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return x, err == nil && finite(x)
	}
	return 0, false
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }
