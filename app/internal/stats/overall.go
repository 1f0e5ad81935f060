package stats

import (
	"infrastatus/app/internal/models"
	"infrastatus/app/internal/units"
)

// Overall status messages
const (
	MsgNoServices   = "No services configured"
	MsgAllOK        = "All systems operational"
	MsgDegradation  = "Partial service degradation"
	MsgSomeDown     = "Some services unavailable"
	MsgMajorOutages = "Major outages detected"
)

// majorOutageShare is the share of down services above which the fleet is down.
const majorOutageShare = 0.2

// ComputeOverall folds per-target statuses into the fleet summary.
func ComputeOverall(statuses []models.Status) models.OverallStatusSummary {
	sum := models.OverallStatusSummary{TotalServices: len(statuses)}
	if len(statuses) == 0 {
		sum.Status = models.StatusDown
		sum.Message = MsgNoServices
		return sum
	}

	for _, st := range statuses {
		switch st {
		case models.StatusOperational:
			sum.Operational++
		case models.StatusDegraded:
			sum.Degraded++
		default:
			sum.Down++
		}
	}

	switch {
	case sum.Down == 0 && sum.Degraded == 0:
		sum.Status, sum.Message = models.StatusOperational, MsgAllOK
	case sum.Down == 0:
		sum.Status, sum.Message = models.StatusDegraded, MsgDegradation
	case float64(sum.Down)/float64(sum.TotalServices) <= majorOutageShare:
		sum.Status, sum.Message = models.StatusDegraded, MsgSomeDown
	default:
		sum.Status, sum.Message = models.StatusDown, MsgMajorOutages
	}
	sum.UptimePercentage = units.Percent(float64(sum.Operational), float64(sum.TotalServices), 1)
	return sum
}
