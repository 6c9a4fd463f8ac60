package strava

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tracksync/strava-sheets-sync/internal/pkg/reconcile"
)

// startDateLayout is the exact timestamp shape Strava returns for start_date.
// Parsing is deliberately strict: an unexpected shape aborts the whole batch
// rather than silently producing a row with a wrong date.
const startDateLayout = "2006-01-02T15:04:05Z"

const defaultActivityName = "Activity"

// FormatActivity converts a raw Strava activity into the cell values written
// to the spreadsheet:
//
//	date       DD/MM/YYYY, from the UTC start timestamp
//	distance   kilometers rounded half-up to 2 decimals, comma separator,
//	           trailing zeros trimmed but at least one decimal kept
//	duration   moving time as HH:MM:SS, hours not capped at 24
//	pace       MM:SS per kilometer of the rounded distance, 00:00 when the
//	           rounded distance is zero
//	heartrate  average heart rate rounded to the nearest integer, empty
//	           when the API omitted it
func FormatActivity(a Activity) (reconcile.Activity, error) {
	startDate, err := time.Parse(startDateLayout, a.StartDate)
	if err != nil {
		return reconcile.Activity{}, &ValidationError{
			Field:   "start_date",
			Message: fmt.Sprintf("unexpected start_date value %q", a.StartDate),
			Cause:   err,
		}
	}

	km := roundHalfUp2(a.Distance / 1000)

	name := a.Name
	if name == "" {
		name = defaultActivityName
	}

	return reconcile.Activity{
		Date:      startDate.Format("02/01/2006"),
		Distance:  formatKilometers(km),
		Duration:  formatDuration(a.MovingTime),
		Pace:      formatPace(a.MovingTime, km),
		HeartRate: formatHeartRate(a.AverageHeartrate),
		Name:      name,
		Type:      a.Type,
	}, nil
}

// FormatActivities formats a batch of activities, preserving order. The first
// formatting failure aborts the batch.
func FormatActivities(activities []Activity) ([]reconcile.Activity, error) {
	formatted := make([]reconcile.Activity, 0, len(activities))
	for _, a := range activities {
		row, err := FormatActivity(a)
		if err != nil {
			return nil, err
		}
		formatted = append(formatted, row)
	}
	return formatted, nil
}

// roundHalfUp2 rounds to 2 decimal places with ties going up.
// Distances are never negative so the half-up adjustment is safe.
func roundHalfUp2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

// formatKilometers renders a rounded distance with a comma decimal separator.
// The numeric part uses the shortest representation of the rounded value, so
// 10.0 km renders as "10,0" and 5.23 km as "5,23".
func formatKilometers(km float64) string {
	s := strconv.FormatFloat(km, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return strings.Replace(s, ".", ",", 1)
}

func formatDuration(seconds int) string {
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
}

// formatPace renders minutes per kilometer against the already rounded
// distance, so the pace cell is consistent with the distance cell next to it.
func formatPace(movingSeconds int, km float64) string {
	if km <= 0 {
		return "00:00"
	}
	paceSeconds := float64(movingSeconds) / km
	minutes := int(math.Floor(paceSeconds / 60))
	secs := int(paceSeconds - float64(minutes)*60)
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}

func formatHeartRate(hr *float64) string {
	if hr == nil {
		return ""
	}
	return strconv.Itoa(int(math.Round(*hr)))
}
