package checker

import (
	"fmt"

	"infrastatus/app/internal/models"
)

// ClassifyHTTP maps a response code (or transport error) to a status and
// the message stored with the record.
func ClassifyHTTP(code, expected int, err error) (models.Status, string) {
	if err != nil {
		return models.StatusDown, err.Error()
	}
	if code == expected {
		return models.StatusOperational, ""
	}
	if code >= 200 && code < 400 {
		return models.StatusDegraded, fmt.Sprintf("Unexpected status code: %d", code)
	}
	return models.StatusDown, fmt.Sprintf("HTTP %d", code)
}

// ClassifyGameServer is only consulted once a reply was received, so it
// never returns down.
func ClassifyGameServer(players, maxPlayers int) models.Status {
	if players < 0 || maxPlayers <= 0 {
		return models.StatusDegraded
	}
	return models.StatusOperational
}

// ClassifyNode compares each metric strictly against the limits.
func ClassifyNode(cpu, memory, disk float64, limits models.NodeLimits) models.Status {
	if cpu > limits.Critical || memory > limits.Critical || disk > limits.Critical {
		return models.StatusDown
	}
	if cpu > limits.Warning || memory > limits.Warning || disk > limits.Warning {
		return models.StatusDegraded
	}
	return models.StatusOperational
}

// ClassifyGuest maps a VM or container lifecycle state.
func ClassifyGuest(state string) models.Status {
	switch state {
	case "running":
		return models.StatusOperational
	case "paused":
		return models.StatusDegraded
	default:
		return models.StatusDown
	}
}
