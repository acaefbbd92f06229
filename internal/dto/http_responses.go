package dto

import (
	"time"

	"github.com/wb-go/wbf/ginext"

	"eventregis/internal/model"
)

const (
	FieldBadFormat     = "FIELD_BADFORMAT"
	FieldIncorrect     = "FIELD_INCORRECT"
	ServiceUnavailable = "SERVICE_UNAVAILABLE"
	InternalError      = "Service is currently unavailable. Please try again later."

	EventNotFound       = "EVENT_NOT_FOUND"
	ParticipantNotFound = "PARTICIPANT_NOT_FOUND"
	RegistrationClosed  = "REGISTRATION_CLOSED"
	MissingDocument     = "MISSING_DOCUMENT"
	FileTooLarge        = "FILE_TOO_LARGE"
	UnsupportedFile     = "UNSUPPORTED_FILE_TYPE"
	MethodNotAllowed    = "REGISTER_METHOD_NOT_ALLOWED"
	GeofenceDenied      = "OUTSIDE_CHECKIN_RADIUS"
	Unauthorized        = "UNAUTHORIZED"
	Forbidden           = "FORBIDDEN"
)

// legacyParticipantStatus maps the stored participant taxonomy onto the
// legacy export taxonomy. Applied only at the response boundary.
var legacyParticipantStatus = map[string]string{
	model.ParticipantConfirmed: "approved",
	model.ParticipantPending:   "pending_review",
	model.ParticipantCancelled: "rejected",
}

// LegacyParticipantStatus returns the export name of a stored participant
// status; unknown values pass through unchanged.
func LegacyParticipantStatus(stored string) string {
	if legacy, ok := legacyParticipantStatus[stored]; ok {
		return legacy
	}
	return stored
}

type CreateEventRequest struct {
	Name                   string   `json:"name" validate:"required"`
	Description            string   `json:"description"`
	BeginDate              string   `json:"begin_date" validate:"required"`
	EndDate                string   `json:"end_date"`
	EventTime              string   `json:"event_time"`
	Address                string   `json:"address"`
	Latitude               *float64 `json:"latitude"`
	Longitude              *float64 `json:"longitude"`
	EnableCheckInRadius    bool     `json:"enable_checkin_radius"`
	CheckInRadiusMeters    *float64 `json:"checkin_radius_m"`
	Capacity               int      `json:"capacity" validate:"gt=0"`
	Status                 string   `json:"status" validate:"omitempty,eventstatus"`
	RegisterMethod         int      `json:"register_method" validate:"omitempty,gte=1,lte=3"`
	NeedOriginApprovePaper bool     `json:"need_origin_approve_paper"`
}

type UpdateEventRequest struct {
	Name                   *string  `json:"name"`
	Description            *string  `json:"description"`
	BeginDate              *string  `json:"begin_date"`
	EndDate                *string  `json:"end_date"`
	EventTime              *string  `json:"event_time"`
	Address                *string  `json:"address"`
	Latitude               *float64 `json:"latitude"`
	Longitude              *float64 `json:"longitude"`
	EnableCheckInRadius    *bool    `json:"enable_checkin_radius"`
	CheckInRadiusMeters    *float64 `json:"checkin_radius_m"`
	Capacity               *int     `json:"capacity" validate:"omitempty,gt=0"`
	Status                 *string  `json:"status" validate:"omitempty,eventstatus"`
	RegisterMethod         *int     `json:"register_method" validate:"omitempty,gte=1,lte=3"`
	NeedOriginApprovePaper *bool    `json:"need_origin_approve_paper"`
}

// RegisterRequest is the multipart form of the public registration endpoint.
// The document part and coordinates travel alongside it.
type RegisterRequest struct {
	FullName     string `form:"full_name" validate:"required,min=2,max=255"`
	Organization string `form:"organization"`
	Position     string `form:"position"`
	Email        string `form:"email" validate:"omitempty,email"`
	Phone        string `form:"phone" validate:"required,thaiphone"`
	FoodType     string `form:"food_type" validate:"omitempty,foodtype"`
	Latitude     string `form:"latitude"`
	Longitude    string `form:"longitude"`
}

type ToggleRegisClosedRequest struct {
	Closed bool `json:"closed"`
}

type EligibilityRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type EligibilityResponse struct {
	Eligible       bool     `json:"eligible"`
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
	RadiusMeters   *float64 `json:"radius_m,omitempty"`
}

type TokenResponse struct {
	Token string `json:"token"`
	Scope string `json:"scope"`
}

type EventResponse struct {
	ID                     int64     `json:"id"`
	Name                   string    `json:"name"`
	Description            string    `json:"description,omitempty"`
	BeginDate              string    `json:"begin_date"`
	EndDate                string    `json:"end_date,omitempty"`
	EventTime              string    `json:"event_time,omitempty"`
	Address                string    `json:"address,omitempty"`
	Latitude               *float64  `json:"latitude,omitempty"`
	Longitude              *float64  `json:"longitude,omitempty"`
	EnableCheckInRadius    bool      `json:"enable_checkin_radius"`
	CheckInRadiusMeters    *float64  `json:"checkin_radius_m,omitempty"`
	Capacity               int       `json:"capacity"`
	Registered             int       `json:"registered"`
	AvailableSeats         int       `json:"available_seats"`
	Status                 string    `json:"status"`
	EffectiveStatus        string    `json:"effective_status"`
	RegisClosed            bool      `json:"regis_closed"`
	RegisterMethod         int       `json:"register_method"`
	NeedOriginApprovePaper bool      `json:"need_origin_approve_paper"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

type ParticipantResponse struct {
	ID           int64     `json:"id"`
	EventID      int64     `json:"event_id"`
	FullName     string    `json:"full_name"`
	Organization string    `json:"organization,omitempty"`
	Position     string    `json:"position,omitempty"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	FoodType     string    `json:"food_type"`
	Status       string    `json:"status"`
	LegacyStatus string    `json:"legacy_status"`
	RegDate      string    `json:"reg_date"`
	RegTime      time.Time `json:"reg_time"`
	HasDocument  bool      `json:"has_document"`
}

// ParticipantAdmittedMessage is published to the notification queue after a
// successful admission with a contact e-mail.
type ParticipantAdmittedMessage struct {
	ParticipantID int64  `json:"participant_id"`
	EventID       int64  `json:"event_id"`
	EventName     string `json:"event_name"`
	Email         string `json:"email"`
	FullName      string `json:"full_name"`
}

type SyncResponse struct {
	EventID    int64 `json:"event_id"`
	Registered int   `json:"registered"`
}

type Response struct {
	Status string `json:"status"`
	Error  *Error `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

type Error struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
}

func errorResponse(c *ginext.Context, httpStatus int, code, desc string) {
	c.JSON(httpStatus, Response{
		Status: "error",
		Error:  &Error{Code: code, Desc: desc},
	})
}

func BadResponseError(c *ginext.Context, code, desc string) {
	errorResponse(c, 400, code, desc)
}

func InternalServerError(c *ginext.Context) {
	errorResponse(c, 500, ServiceUnavailable, InternalError)
}

func EventNotFoundError(c *ginext.Context) {
	errorResponse(c, 404, EventNotFound, "Event not found")
}

func ParticipantNotFoundError(c *ginext.Context) {
	errorResponse(c, 404, ParticipantNotFound, "Participant not found")
}

func RegistrationClosedError(c *ginext.Context) {
	errorResponse(c, 403, RegistrationClosed, "Registration for this event is closed")
}

func MissingDocumentError(c *ginext.Context) {
	errorResponse(c, 400, MissingDocument, "This event requires a supporting document")
}

func FileTooLargeError(c *ginext.Context) {
	errorResponse(c, 413, FileTooLarge, "Document exceeds the 10 MiB limit")
}

func UnsupportedFileError(c *ginext.Context) {
	errorResponse(c, 415, UnsupportedFile, "Document must be PDF, JPEG or PNG")
}

func MethodNotAllowedError(c *ginext.Context) {
	errorResponse(c, 403, MethodNotAllowed, "This registration method is not enabled for the event")
}

func GeofenceDeniedError(c *ginext.Context) {
	errorResponse(c, 403, GeofenceDenied, "You are outside the allowed check-in radius")
}

func UnauthorizedError(c *ginext.Context) {
	errorResponse(c, 401, Unauthorized, "A valid bearer token is required")
}

func ForbiddenError(c *ginext.Context) {
	errorResponse(c, 403, Forbidden, "You are not the owner of this event")
}

func SuccessResponse(c *ginext.Context, data any) {
	c.JSON(200, Response{Status: "ok", Data: data})
}

func SuccessCreatedResponse(c *ginext.Context, data any) {
	c.JSON(201, Response{Status: "ok", Data: data})
}
