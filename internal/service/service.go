package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"eventregis/internal/auth"
	"eventregis/internal/dto"
	"eventregis/internal/filestore"
	"eventregis/internal/geo"
	"eventregis/internal/mask"
	"eventregis/internal/model"
	"eventregis/internal/rabbit"
	"eventregis/internal/repo"
	"eventregis/internal/status"
	"eventregis/pkg/validator"
)

const regDateLayout = "02/01/2006"

type Service interface {
	IssuePublicToken(ctx *ginext.Context)
	CreateEvent(ctx *ginext.Context)
	GetAllEvents(ctx *ginext.Context)
	GetEvent(ctx *ginext.Context)
	Register(ctx *ginext.Context)
	GetParticipants(ctx *ginext.Context)
	UpdateEvent(ctx *ginext.Context)
	ToggleRegisClosed(ctx *ginext.Context)
	DeleteParticipant(ctx *ginext.Context)
	SyncRegistered(ctx *ginext.Context)
	CheckEligibility(ctx *ginext.Context)
}

type service struct {
	repo      repo.Repository
	log       *zerolog.Logger
	rbt       *rabbit.Client
	verifier  *auth.Verifier
	files     *filestore.Store
	publicTTL time.Duration
}

func NewService(repo repo.Repository, log *zerolog.Logger, rbt *rabbit.Client, verifier *auth.Verifier, files *filestore.Store, publicTTL time.Duration) Service {
	return &service{
		repo:      repo,
		log:       log,
		rbt:       rbt,
		verifier:  verifier,
		files:     files,
		publicTTL: publicTTL,
	}
}

// claims extracts and verifies the bearer token, if any. A missing token is
// not an error here; handlers decide whether auth is mandatory.
func (s *service) claims(ctx *ginext.Context) (*auth.Claims, error) {
	c, err := s.verifier.FromHeader(ctx.GetHeader("Authorization"))
	if err != nil {
		if errors.Is(err, auth.ErrNoToken) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

func eventID(ctx *ginext.Context) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid event ID")
		return 0, false
	}
	return id, true
}

func toEventResponse(e *model.Event, now time.Time) dto.EventResponse {
	seats := e.Capacity - e.Registered
	if seats < 0 {
		seats = 0
	}
	return dto.EventResponse{
		ID:                     e.ID,
		Name:                   e.Name,
		Description:            e.Description,
		BeginDate:              e.BeginDate,
		EndDate:                e.EndDate,
		EventTime:              e.EventTime,
		Address:                e.Address,
		Latitude:               e.Latitude,
		Longitude:              e.Longitude,
		EnableCheckInRadius:    e.EnableCheckInRadius,
		CheckInRadiusMeters:    e.CheckInRadiusMeters,
		Capacity:               e.Capacity,
		Registered:             e.Registered,
		AvailableSeats:         seats,
		Status:                 e.Status,
		EffectiveStatus:        status.Effective(e, now),
		RegisClosed:            status.IsRegisClosed(e, now),
		RegisterMethod:         e.RegisterMethod,
		NeedOriginApprovePaper: e.NeedOriginApprovePaper,
		CreatedAt:              e.CreatedAt,
		UpdatedAt:              e.UpdatedAt,
	}
}

func toParticipantResponse(p *model.Participant, masked bool) dto.ParticipantResponse {
	resp := dto.ParticipantResponse{
		ID:           p.ID,
		EventID:      p.EventID,
		FullName:     p.FullName,
		Organization: p.Organization,
		Position:     p.Position,
		Email:        p.Email,
		Phone:        p.Phone,
		FoodType:     p.FoodType,
		Status:       p.Status,
		LegacyStatus: dto.LegacyParticipantStatus(p.Status),
		RegDate:      p.RegDate,
		RegTime:      p.RegTime,
		HasDocument:  p.DocPath != "",
	}
	if masked {
		resp.FullName = mask.Name(p.FullName)
		resp.Email = mask.Masked
		resp.Phone = mask.Masked
	}
	return resp
}

func (s *service) IssuePublicToken(ctx *ginext.Context) {
	token, err := s.verifier.Issue(auth.Claims{
		UserID: uuid.NewString(),
		Scope:  auth.ScopePublic,
	}, s.publicTTL)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to issue public token")
		dto.InternalServerError(ctx)
		return
	}
	dto.SuccessResponse(ctx, dto.TokenResponse{Token: token, Scope: auth.ScopePublic})
}

func (s *service) CreateEvent(ctx *ginext.Context) {
	var req dto.CreateEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		s.log.Error().Err(err).Msg("failed to parse create event request")
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	claims, err := s.claims(ctx)
	if err != nil {
		dto.UnauthorizedError(ctx)
		return
	}

	event := &model.Event{
		Name:                   req.Name,
		Description:            req.Description,
		BeginDate:              req.BeginDate,
		EndDate:                req.EndDate,
		EventTime:              req.EventTime,
		Address:                req.Address,
		Latitude:               req.Latitude,
		Longitude:              req.Longitude,
		EnableCheckInRadius:    req.EnableCheckInRadius,
		CheckInRadiusMeters:    req.CheckInRadiusMeters,
		Capacity:               req.Capacity,
		Status:                 req.Status,
		RegisterMethod:         req.RegisterMethod,
		NeedOriginApprovePaper: req.NeedOriginApprovePaper,
	}
	if event.Status == "" {
		event.Status = model.StatusScheduled
	}
	if event.RegisterMethod == 0 {
		event.RegisterMethod = model.RegisterBoth
	}
	if claims != nil {
		event.ProviderIDCreated = claims.ProviderID
	}

	id, err := s.repo.CreateEvent(ctx, event)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to create event in DB")
		dto.InternalServerError(ctx)
		return
	}

	event.ID = id
	event.CreatedAt = time.Now()
	event.UpdatedAt = event.CreatedAt
	s.log.Info().Int64("event_id", id).Msg("event created successfully")

	dto.SuccessCreatedResponse(ctx, toEventResponse(event, time.Now()))
}

func (s *service) GetAllEvents(ctx *ginext.Context) {
	events, err := s.repo.GetAllEvents(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list events")
		dto.InternalServerError(ctx)
		return
	}

	now := time.Now()
	resp := make([]dto.EventResponse, 0, len(events))
	for i := range events {
		resp = append(resp, toEventResponse(&events[i], now))
	}
	dto.SuccessResponse(ctx, resp)
}

func (s *service) GetEvent(ctx *ginext.Context) {
	id, ok := eventID(ctx)
	if !ok {
		return
	}

	event, err := s.repo.GetEventByID(ctx, id)
	if err != nil {
		dto.EventNotFoundError(ctx)
		return
	}
	dto.SuccessResponse(ctx, toEventResponse(event, time.Now()))
}

// Register is the public admission endpoint. The request is a multipart form
// so a supporting document can travel with the profile fields. The repository
// transaction is the authoritative check; everything before it is validation
// and file staging.
func (s *service) Register(ctx *ginext.Context) {
	id, ok := eventID(ctx)
	if !ok {
		return
	}

	var req dto.RegisterRequest
	if err := ctx.ShouldBind(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid form data")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	claims, err := s.claims(ctx)
	if err != nil {
		dto.UnauthorizedError(ctx)
		return
	}

	source := repo.SourceForm
	now := time.Now()
	participant := &model.Participant{
		EventID:      id,
		FullName:     req.FullName,
		Organization: req.Organization,
		Position:     req.Position,
		Email:        req.Email,
		Phone:        validator.NormalizePhone(req.Phone),
		FoodType:     req.FoodType,
		RegDate:      now.Format(regDateLayout),
		RegTime:      now,
	}
	if participant.FoodType == "" {
		participant.FoodType = model.FoodNormal
	}
	if claims != nil && claims.ProviderID != "" {
		source = repo.SourceProvider
		participant.ProviderID = claims.ProviderID
		if participant.FullName == "" {
			participant.FullName = claims.FullName
		}
		if participant.Organization == "" {
			participant.Organization = claims.OrgName
		}
		if participant.Email == "" {
			participant.Email = claims.Email
		}
	}

	var pos *repo.Position
	if req.Latitude != "" && req.Longitude != "" {
		lat, latErr := strconv.ParseFloat(req.Latitude, 64)
		lon, lonErr := strconv.ParseFloat(req.Longitude, 64)
		if latErr != nil || lonErr != nil {
			dto.BadResponseError(ctx, dto.FieldBadFormat, "Invalid coordinates")
			return
		}
		pos = &repo.Position{Lat: lat, Lon: lon}
	}

	// Stage the document before the transaction; compensate with a delete on
	// every failure path after this point.
	if fh, err := ctx.FormFile("document"); err == nil && fh != nil {
		if fh.Size > filestore.MaxDocumentBytes {
			dto.FileTooLargeError(ctx)
			return
		}
		f, err := fh.Open()
		if err != nil {
			dto.InternalServerError(ctx)
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			dto.InternalServerError(ctx)
			return
		}

		mime := http.DetectContentType(data)
		doc, err := s.files.Save(id, fh.Filename, mime, data)
		if err != nil {
			switch {
			case errors.Is(err, filestore.ErrFileTooLarge):
				dto.FileTooLargeError(ctx)
			case errors.Is(err, filestore.ErrUnsupportedFileType):
				dto.UnsupportedFileError(ctx)
			default:
				s.log.Error().Err(err).Msg("failed to store document")
				dto.InternalServerError(ctx)
			}
			return
		}
		participant.DocPath = doc.Path
		participant.DocMime = doc.Mime
		participant.DocName = doc.Name
		participant.DocUploadedAt = &doc.UploadedAt
	}

	pid, err := s.repo.AdmitParticipantTx(ctx.Request.Context(), participant, source, pos)
	if err != nil {
		s.files.Remove(participant.DocPath)
		switch {
		case errors.Is(err, repo.ErrEventNotFound):
			dto.EventNotFoundError(ctx)
		case errors.Is(err, repo.ErrRegistrationClosed):
			dto.RegistrationClosedError(ctx)
		case errors.Is(err, repo.ErrMissingDocument):
			dto.MissingDocumentError(ctx)
		case errors.Is(err, repo.ErrMethodNotAllowed):
			dto.MethodNotAllowedError(ctx)
		case errors.Is(err, repo.ErrGeofenceDenied):
			dto.GeofenceDeniedError(ctx)
		default:
			s.log.Error().Err(err).Int64("event_id", id).Msg("failed to admit participant")
			dto.InternalServerError(ctx)
		}
		return
	}

	participant.ID = pid
	s.log.Info().
		Int64("participant_id", pid).
		Int64("event_id", id).
		Str("source", source).
		Msg("participant admitted")

	s.notifyAdmitted(participant)

	dto.SuccessCreatedResponse(ctx, toParticipantResponse(participant, false))
}

// notifyAdmitted publishes the confirmation-mail message. Never fails the
// admission: the participant row is already committed.
func (s *service) notifyAdmitted(p *model.Participant) {
	if s.rbt == nil || p.Email == "" {
		return
	}
	event, err := s.repo.GetEventByID(context.Background(), p.EventID)
	if err != nil {
		s.log.Warn().Err(err).Int64("event_id", p.EventID).Msg("failed to load event for notification")
		return
	}
	msg := dto.ParticipantAdmittedMessage{
		ParticipantID: p.ID,
		EventID:       p.EventID,
		EventName:     event.Name,
		Email:         p.Email,
		FullName:      p.FullName,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to marshal admitted message")
		return
	}
	if err := s.rbt.Publish(payload, 0); err != nil {
		s.log.Warn().Err(err).Msg("failed to publish admitted message")
	}
}

// GetParticipants returns the roster. A bearer token is required; rows are
// masked at the source unless the token carries the session scope, so a
// public token never sees contact data on the wire.
func (s *service) GetParticipants(ctx *ginext.Context) {
	id, ok := eventID(ctx)
	if !ok {
		return
	}

	claims, err := s.claims(ctx)
	if err != nil || claims == nil {
		dto.UnauthorizedError(ctx)
		return
	}

	if _, err := s.repo.GetEventByID(ctx, id); err != nil {
		dto.EventNotFoundError(ctx)
		return
	}

	participants, err := s.repo.GetParticipantsByEventID(ctx, id)
	if err != nil {
		s.log.Error().Err(err).Int64("event_id", id).Msg("failed to get roster")
		dto.InternalServerError(ctx)
		return
	}

	masked := !claims.Privileged()
	resp := make([]dto.ParticipantResponse, 0, len(participants))
	for i := range participants {
		resp = append(resp, toParticipantResponse(&participants[i], masked))
	}
	dto.SuccessResponse(ctx, resp)
}

// requireOwner loads the event and resolves the three-way ownership outcome.
func (s *service) requireOwner(ctx *ginext.Context) (*model.Event, *auth.Claims, bool) {
	id, ok := eventID(ctx)
	if !ok {
		return nil, nil, false
	}

	claims, err := s.claims(ctx)
	if err != nil || claims == nil {
		dto.UnauthorizedError(ctx)
		return nil, nil, false
	}

	event, err := s.repo.GetEventByID(ctx, id)
	if err != nil {
		dto.EventNotFoundError(ctx)
		return nil, nil, false
	}

	if !auth.CheckOwnership(event.ProviderIDCreated, claims.ProviderID).Allowed() {
		dto.ForbiddenError(ctx)
		return nil, nil, false
	}
	return event, claims, true
}

func (s *service) UpdateEvent(ctx *ginext.Context) {
	event, claims, ok := s.requireOwner(ctx)
	if !ok {
		return
	}

	var req dto.UpdateEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	if req.Name != nil {
		event.Name = *req.Name
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	if req.BeginDate != nil {
		event.BeginDate = *req.BeginDate
	}
	if req.EndDate != nil {
		event.EndDate = *req.EndDate
	}
	if req.EventTime != nil {
		event.EventTime = *req.EventTime
	}
	if req.Address != nil {
		event.Address = *req.Address
	}
	if req.Latitude != nil {
		event.Latitude = req.Latitude
	}
	if req.Longitude != nil {
		event.Longitude = req.Longitude
	}
	if req.EnableCheckInRadius != nil {
		event.EnableCheckInRadius = *req.EnableCheckInRadius
	}
	if req.CheckInRadiusMeters != nil {
		event.CheckInRadiusMeters = req.CheckInRadiusMeters
	}
	if req.Capacity != nil {
		event.Capacity = *req.Capacity
	}
	if req.Status != nil {
		event.Status = *req.Status
	}
	if req.RegisterMethod != nil {
		event.RegisterMethod = *req.RegisterMethod
	}
	if req.NeedOriginApprovePaper != nil {
		event.NeedOriginApprovePaper = *req.NeedOriginApprovePaper
	}

	// Legacy events without a recorded owner adopt the caller on update.
	if event.ProviderIDCreated == "" && claims.ProviderID != "" {
		event.ProviderIDCreated = claims.ProviderID
	}

	if err := s.repo.UpdateEvent(ctx, event); err != nil {
		if errors.Is(err, repo.ErrEventNotFound) {
			dto.EventNotFoundError(ctx)
			return
		}
		s.log.Error().Err(err).Int64("event_id", event.ID).Msg("failed to update event")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().Int64("event_id", event.ID).Msg("event updated")
	dto.SuccessResponse(ctx, toEventResponse(event, time.Now()))
}

func (s *service) ToggleRegisClosed(ctx *ginext.Context) {
	event, _, ok := s.requireOwner(ctx)
	if !ok {
		return
	}

	var req dto.ToggleRegisClosedRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	if err := s.repo.SetRegisClosed(ctx, event.ID, req.Closed); err != nil {
		s.log.Error().Err(err).Int64("event_id", event.ID).Msg("failed to toggle regis_closed")
		dto.InternalServerError(ctx)
		return
	}

	event.RegisClosed = req.Closed
	s.log.Info().Int64("event_id", event.ID).Bool("closed", req.Closed).Msg("regis_closed toggled")
	dto.SuccessResponse(ctx, toEventResponse(event, time.Now()))
}

func (s *service) DeleteParticipant(ctx *ginext.Context) {
	event, _, ok := s.requireOwner(ctx)
	if !ok {
		return
	}

	pid, err := strconv.ParseInt(ctx.Param("pid"), 10, 64)
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid participant ID")
		return
	}

	docPath, registered, err := s.repo.DeleteParticipantTx(ctx.Request.Context(), event.ID, pid)
	if err != nil {
		if errors.Is(err, repo.ErrParticipantNotFound) {
			dto.ParticipantNotFoundError(ctx)
			return
		}
		s.log.Error().Err(err).Int64("participant_id", pid).Msg("failed to delete participant")
		dto.InternalServerError(ctx)
		return
	}
	s.files.Remove(docPath)

	s.log.Info().
		Int64("participant_id", pid).
		Int64("event_id", event.ID).
		Msg("participant deleted")
	dto.SuccessResponse(ctx, dto.SyncResponse{EventID: event.ID, Registered: registered})
}

func (s *service) SyncRegistered(ctx *ginext.Context) {
	event, _, ok := s.requireOwner(ctx)
	if !ok {
		return
	}

	count, err := s.repo.SyncRegisteredTx(ctx.Request.Context(), event.ID)
	if err != nil {
		s.log.Error().Err(err).Int64("event_id", event.ID).Msg("failed to sync registered count")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().Int64("event_id", event.ID).Int("registered", count).Msg("registered count synced")
	dto.SuccessResponse(ctx, dto.SyncResponse{EventID: event.ID, Registered: count})
}

// CheckEligibility is the advisory geofence check used by the registration
// form before enabling the submit control. The admission transaction re-checks
// server-side regardless.
func (s *service) CheckEligibility(ctx *ginext.Context) {
	id, ok := eventID(ctx)
	if !ok {
		return
	}

	event, err := s.repo.GetEventByID(ctx, id)
	if err != nil {
		dto.EventNotFoundError(ctx)
		return
	}

	var req dto.EligibilityRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	hasPos := req.Latitude != nil && req.Longitude != nil
	var userLat, userLon float64
	if hasPos {
		userLat, userLon = *req.Latitude, *req.Longitude
	}

	resp := dto.EligibilityResponse{
		Eligible: geo.Eligible(event.Latitude, event.Longitude, event.CheckInRadiusMeters,
			event.EnableCheckInRadius, userLat, userLon, hasPos),
		RadiusMeters: event.CheckInRadiusMeters,
	}
	if hasPos && event.Latitude != nil && event.Longitude != nil {
		d := geo.Distance(*event.Latitude, *event.Longitude, userLat, userLon)
		resp.DistanceMeters = &d
	}
	dto.SuccessResponse(ctx, resp)
}
