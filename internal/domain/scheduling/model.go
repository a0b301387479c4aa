package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// Status is the appointment lifecycle state.
type Status string

const (
	StatusProposed  Status = "proposed"
	StatusBooked    Status = "booked"
	StatusArrived   Status = "arrived"
	StatusFulfilled Status = "fulfilled"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "noshow"
)

// validTransitions is the appointment state machine. Terminal states have
// no outgoing edges.
var validTransitions = map[Status][]Status{
	StatusProposed: {StatusBooked, StatusCancelled},
	StatusBooked:   {StatusArrived, StatusCancelled, StatusNoShow},
	StatusArrived:  {StatusFulfilled, StatusCancelled},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status has no outgoing transitions.
func IsTerminal(s Status) bool {
	return len(validTransitions[s]) == 0
}

// Appointment is a scheduled consultation between a patient and a doctor.
// A video room is assigned when the appointment is booked.
type Appointment struct {
	ID          uuid.UUID `json:"id"`
	PatientID   string    `json:"patient_id"`
	DoctorID    string    `json:"doctor_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Status      Status    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	VideoRoomID string    `json:"video_room_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
