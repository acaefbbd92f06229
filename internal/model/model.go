package model

import "time"

// Event statuses set by the organizer. "full" and "closed" can also be
// reached automatically, see the status package.
const (
	StatusScheduled = "scheduled"
	StatusOpen      = "open"
	StatusConfirmed = "confirmed"
	StatusFull      = "full"
	StatusPending   = "pending"
	StatusClosed    = "closed"
	StatusCancelled = "cancelled"
	StatusPostponed = "postponed"
)

// Registration method gate.
const (
	RegisterProviderOnly = 1
	RegisterFormOnly     = 2
	RegisterBoth         = 3
)

// Participant statuses. The legacy export taxonomy
// (approved/pending_review/rejected) is mapped in the dto package.
const (
	ParticipantConfirmed = "confirmed"
	ParticipantPending   = "pending"
	ParticipantCancelled = "cancelled"
)

const (
	FoodNormal = "normal"
	FoodIslam  = "islam"
)

type Event struct {
	ID                     int64     `db:"id" json:"id"`
	Name                   string    `db:"name" json:"name"`
	Description            string    `db:"description,omitempty" json:"description,omitempty"`
	BeginDate              string    `db:"begin_date" json:"begin_date"`
	EndDate                string    `db:"end_date,omitempty" json:"end_date,omitempty"`
	EventTime              string    `db:"event_time,omitempty" json:"event_time,omitempty"`
	Address                string    `db:"address,omitempty" json:"address,omitempty"`
	Latitude               *float64  `db:"latitude" json:"latitude,omitempty"`
	Longitude              *float64  `db:"longitude" json:"longitude,omitempty"`
	EnableCheckInRadius    bool      `db:"enable_checkin_radius" json:"enable_checkin_radius"`
	CheckInRadiusMeters    *float64  `db:"checkin_radius_m" json:"checkin_radius_m,omitempty"`
	Capacity               int       `db:"capacity" json:"capacity"`
	Registered             int       `db:"registered" json:"registered"`
	Status                 string    `db:"status" json:"status"`
	RegisClosed            bool      `db:"regis_closed" json:"regis_closed"`
	ProviderIDCreated      string    `db:"provider_id_created,omitempty" json:"provider_id_created,omitempty"`
	RegisterMethod         int       `db:"register_method" json:"register_method"`
	NeedOriginApprovePaper bool      `db:"need_origin_approve_paper" json:"need_origin_approve_paper"`
	CreatedAt              time.Time `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time `db:"updated_at" json:"updated_at"`
}

// HasGeofence reports whether the radius gate is meaningful for the event:
// the flag is on and both coordinates plus a positive radius are present.
func (e *Event) HasGeofence() bool {
	return e.EnableCheckInRadius && e.Latitude != nil && e.Longitude != nil &&
		e.CheckInRadiusMeters != nil && *e.CheckInRadiusMeters > 0
}

type Participant struct {
	ID            int64      `db:"id" json:"id"`
	EventID       int64      `db:"event_id" json:"event_id"`
	FullName      string     `db:"full_name" json:"full_name"`
	Organization  string     `db:"organization,omitempty" json:"organization,omitempty"`
	Position      string     `db:"position,omitempty" json:"position,omitempty"`
	Email         string     `db:"email,omitempty" json:"email,omitempty"`
	Phone         string     `db:"phone" json:"phone"`
	ProviderID    string     `db:"provider_id,omitempty" json:"provider_id,omitempty"`
	FoodType      string     `db:"food_type" json:"food_type"`
	Status        string     `db:"status" json:"status"`
	RegDate       string     `db:"reg_date" json:"reg_date"`
	RegTime       time.Time  `db:"reg_time" json:"reg_time"`
	DocPath       string     `db:"doc_path,omitempty" json:"doc_path,omitempty"`
	DocMime       string     `db:"doc_mime,omitempty" json:"doc_mime,omitempty"`
	DocName       string     `db:"doc_name,omitempty" json:"doc_name,omitempty"`
	DocUploadedAt *time.Time `db:"doc_uploaded_at" json:"doc_uploaded_at,omitempty"`
}
