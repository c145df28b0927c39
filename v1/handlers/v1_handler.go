package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"gorm.io/gorm"

	"github.com/campus-clubhouse/clubhouse-backend/shared/utils"
	"github.com/campus-clubhouse/clubhouse-backend/v1/middleware"
	"github.com/campus-clubhouse/clubhouse-backend/v1/models"
	"github.com/campus-clubhouse/clubhouse-backend/v1/services"
	"github.com/campus-clubhouse/clubhouse-backend/v1/store"
	validators "github.com/campus-clubhouse/clubhouse-backend/v1/utils"
)

// V1Handler handles all V1 API routes
type V1Handler struct {
	clubService         *services.ClubService
	studentService      *services.StudentService
	membershipService   *services.MembershipService
	verificationService *services.VerificationService
	inviteService       *services.InviteService
	sessions            *middleware.SessionAuthMiddleware
}

// NewV1Handler creates a new V1 handler with the full service graph
func NewV1Handler(db *gorm.DB, sessions *middleware.SessionAuthMiddleware) (*V1Handler, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session middleware is required")
	}

	recordStore := store.New(db)
	membershipService := services.NewMembershipService(recordStore)
	studentService := services.NewStudentService(recordStore, membershipService)

	return &V1Handler{
		clubService:         services.NewClubService(recordStore, membershipService),
		studentService:      studentService,
		membershipService:   membershipService,
		verificationService: services.NewVerificationService(recordStore, os.Getenv("ADVISOR_CODE")),
		inviteService:       services.NewInviteService(recordStore, studentService),
		sessions:            sessions,
	}, nil
}

// SetupV1Routes registers the authenticated API routes
func (h *V1Handler) SetupV1Routes(mux *http.ServeMux) {
	// Club routes (including nested members and verification)
	mux.Handle("/api/v1/clubs", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleClubs)))
	mux.Handle("/api/v1/clubs/", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleClubs)))

	// Student routes
	mux.Handle("/api/v1/students", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleStudents)))
	mux.Handle("/api/v1/students/", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleStudents)))

	// Invite generation (redemption is public, registered separately)
	mux.Handle("/api/v1/invites", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleInvites)))
}

// SetupPublicRoutes registers the routes that work without a session
func (h *V1Handler) SetupPublicRoutes(mux *http.ServeMux) {
	mux.Handle("/api/v1/auth/login", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.login)))
	mux.Handle("/api/v1/auth/logout", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.logout)))
	mux.Handle("/api/v1/invites/", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleInviteRedemption)))
}

// respondWithAppError maps tagged service errors onto HTTP status codes
func respondWithAppError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch models.ErrorKindOf(err) {
	case models.ErrKindClubNotFound, models.ErrKindStudentNotFound,
		models.ErrKindMembershipNotFound, models.ErrKindInviteNotFound:
		status = http.StatusNotFound
	case models.ErrKindDuplicateMembership, models.ErrKindSameRequesterConfirmer:
		status = http.StatusConflict
	case models.ErrKindInvalidRole, models.ErrKindInvalidInput:
		status = http.StatusBadRequest
	case models.ErrKindForbidden:
		status = http.StatusForbidden
	}
	utils.RespondWithError(w, status, err.Error())
}

// requireUser pulls the caller identity off the request, answering 401 itself
// when the session middleware never ran
func requireUser(w http.ResponseWriter, r *http.Request) (*models.AuthenticatedUser, bool) {
	user, err := middleware.GetUserFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return nil, false
	}
	return user, true
}

// ---- Auth ----

func (h *V1Handler) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, user, err := h.sessions.Login(&req)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	h.sessions.IssueCookie(w, token)
	utils.RespondWithSuccess(w, http.StatusOK, map[string]interface{}{
		"email": user.Email,
		"role":  user.Role,
		"token": token,
	})
}

func (h *V1Handler) logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	h.sessions.ClearCookie(w)
	utils.RespondWithSuccess(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// ---- Clubs ----

// handleClubs dispatches club routes, including the nested member and
// verification segments
func (h *V1Handler) handleClubs(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/clubs")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	// Handle collection endpoint: GET /api/v1/clubs and POST /api/v1/clubs
	if len(parts) == 1 && parts[0] == "" {
		switch r.Method {
		case http.MethodGet:
			h.getAllClubs(w, r)
		case http.MethodPost:
			h.createClub(w, r)
		default:
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}
	if parts[0] == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Club ID is required")
		return
	}
	clubID := parts[0]

	// Handle specific club endpoint: GET/PUT/DELETE /api/v1/clubs/:clubId
	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.getClub(w, r, clubID)
		case http.MethodPut:
			h.updateClub(w, r, clubID)
		case http.MethodDelete:
			h.deleteClub(w, r, clubID)
		default:
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	switch parts[1] {
	case "members":
		h.handleClubMembers(w, r, clubID, parts[2:])
		return
	case "verification":
		h.handleClubVerification(w, r, clubID, parts[2:])
		return
	}

	utils.RespondWithError(w, http.StatusNotFound, "Endpoint not found")
}

func (h *V1Handler) createClub(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req models.CreateClubRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	club, err := h.clubService.CreateClub(user, &req)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	utils.RespondWithSuccess(w, http.StatusCreated, club)
}

func (h *V1Handler) getAllClubs(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	clubs, err := h.clubService.GetClubs(r.URL.Query().Get("q"))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	utils.RespondWithSuccess(w, http.StatusOK, models.CollectionResponse{Items: clubs, Count: len(clubs)})
}

func (h *V1Handler) getClub(w http.ResponseWriter, r *http.Request, clubID string) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	club, err := h.clubService.GetClub(clubID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	utils.RespondWithSuccess(w, http.StatusOK, club)
}

func (h *V1Handler) updateClub(w http.ResponseWriter, r *http.Request, clubID string) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req models.UpdateClubRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	club, err := h.clubService.UpdateClub(user, clubID, &req)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	utils.RespondWithSuccess(w, http.StatusOK, club)
}

func (h *V1Handler) deleteClub(w http.ResponseWriter, r *http.Request, clubID string) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.clubService.DeleteClub(user, clubID); err != nil {
		respondWithAppError(w, err)
		return
	}
	utils.RespondWithSuccess(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ---- Club members ----

// handleClubMembers dispatches /api/v1/clubs/:clubId/members and below
func (h *V1Handler) handleClubMembers(w http.ResponseWriter, r *http.Request, clubID string, rest []string) {
	// Collection endpoint: GET lists, POST adds
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			h.getClubMembers(w, r, clubID)
		case http.MethodPost:
			h.addClubMember(w, r, clubID)
		default:
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	if len(rest) == 1 && rest[0] == "export" {
		if r.Method != http.MethodGet {
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.exportClubRoster(w, r, clubID)
		return
	}

	if len(rest) == 1 && rest[0] != "" {
		studentID := rest[0]
		switch r.Method {
		case http.MethodPut:
			h.updateClubMemberRole(w, r, clubID, studentID)
		case http.MethodDelete:
			h.removeClubMember(w, r, clubID, studentID)
		default:
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	utils.RespondWithError(w, http.StatusNotFound, "Endpoint not found")
}

func memberListOptionsFromQuery(r *http.Request) models.MemberListOptions {
	return models.MemberListOptions{
		Query: r.URL.Query().Get("q"),
		Role:  r.URL.Query().Get("role"),
		Sort:  r.URL.Query().Get("sort"),
	}
}

func (h *V1Handler) getClubMembers(w http.ResponseWriter, r *http.Request, clubID string) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	// Surface 404 for unknown clubs; an empty roster is a valid empty list
	if _, err := h.clubService.GetClub(clubID); err != nil {
		respondWithAppError(w, err)
		return
	}
	members, err := h.membershipService.ListClubMembers(clubID, memberListOptionsFromQuery(r))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	utils.RespondWithSuccess(w, http.StatusOK, models.CollectionResponse{Items: members, Count: len(members)})
}

func (h *V1Handler) addClubMember(w http.ResponseWriter, r *http.Request, clubID string) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req models.AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !validators.ValidateRole(req.Role) {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid role")
		return
	}
	membershipID, err := h.membershipService.AddMember(user, clubID, req.StudentID, models.MembershipRole(req.Role))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	utils.RespondWithSuccess(w, http.StatusCreated, map[string]string{"membershipId": membershipID})
}

func (h *V1Handler) updateClubMemberRole(w http.ResponseWriter, r *http.Request, clubID, studentID string) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req models.UpdateMemberRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !validators.ValidateRole(req.Role) {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid role")
		return
	}
	if err := h.membershipService.UpdateMemberRole(user, clubID, studentID, models.MembershipRole(req.Role)); err != nil {
		respondWithAppError(w, err)
		return
	}
	utils.RespondWithSuccess(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *V1Handler) removeClubMember(w http.ResponseWriter, r *http.Request, clubID, studentID string) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.membershipService.RemoveMember(user, clubID, studentID); err != nil {
		respondWithAppError(w, err)
		return
	}
	utils.RespondWithSuccess(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *V1Handler) exportClubRoster(w http.ResponseWriter, r *http.Request, clubID string) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	data, filename, err := h.membershipService.ExportRosterCSV(user, clubID, memberListOptionsFromQuery(r))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ---- Club verification ----

// handleClubVerification dispatches /api/v1/clubs/:clubId/verification/...
func (h *V1Handler) handleClubVerification(w http.ResponseWriter, r *http.Request, clubID string, rest []string) {
	if len(rest) != 1 || r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusNotFound, "Endpoint not found")
		return
	}
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	switch rest[0] {
	case "request":
		// An empty body is a request without a note
		var req models.VerificationRequestPayload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if err := h.verificationService.RequestVerification(user, clubID, req.Note); err != nil {
			respondWithAppError(w, err)
			return
		}
		utils.RespondWithSuccess(w, http.StatusOK, map[string]string{"status": "requested"})
	case "confirm":
		// An empty body is a confirm without an advisor code
		var req models.VerificationConfirmPayload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if err := h.verificationService.ConfirmVerification(user, clubID, req.AdvisorCode); err != nil {
			respondWithAppError(w, err)
			return
		}
		utils.RespondWithSuccess(w, http.StatusOK, map[string]string{"status": "verified"})
	default:
		utils.RespondWithError(w, http.StatusNotFound, "Endpoint not found")
	}
}

// ---- Students ----

// handleStudents dispatches student routes
func (h *V1Handler) handleStudents(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/students")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	// Handle collection endpoint: GET /api/v1/students and POST /api/v1/students
	if len(parts) == 1 && parts[0] == "" {
		switch r.Method {
		case http.MethodGet:
			h.getAllStudents(w, r)
		case http.MethodPost:
			h.createStudent(w, r)
		default:
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}
	if parts[0] == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Student ID is required")
		return
	}

	// Reserved collection-level segments before treating parts[0] as an ID
	if len(parts) == 1 {
		switch parts[0] {
		case "email-check":
			h.checkStudentEmail(w, r)
			return
		case "memberships":
			h.getStudentsWithMemberships(w, r)
			return
		}
	}

	studentID := parts[0]
	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.getStudent(w, r, studentID)
		case http.MethodPut:
			h.updateStudent(w, r, studentID)
		case http.MethodDelete:
			h.deleteStudent(w, r, studentID)
		default:
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	utils.RespondWithError(w, http.StatusNotFound, "Endpoint not found")
}

func (h *V1Handler) createStudent(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	var req models.CreateStudentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	student, err := h.studentService.CreateStudent(&req)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	utils.RespondWithSuccess(w, http.StatusCreated, student)
}

func (h *V1Handler) getAllStudents(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	students, err := h.studentService.GetStudents()
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	utils.RespondWithSuccess(w, http.StatusOK, models.CollectionResponse{Items: students, Count: len(students)})
}

func (h *V1Handler) getStudent(w http.ResponseWriter, r *http.Request, studentID string) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	student, err := h.studentService.GetStudent(studentID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	utils.RespondWithSuccess(w, http.StatusOK, student)
}

func (h *V1Handler) updateStudent(w http.ResponseWriter, r *http.Request, studentID string) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	var req models.UpdateStudentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	student, err := h.studentService.UpdateStudent(studentID, &req)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	utils.RespondWithSuccess(w, http.StatusOK, student)
}

func (h *V1Handler) deleteStudent(w http.ResponseWriter, r *http.Request, studentID string) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	if !user.IsOfficer() {
		utils.RespondWithError(w, http.StatusForbidden, "Officer role required")
		return
	}
	if err := h.studentService.DeleteStudent(studentID); err != nil {
		respondWithAppError(w, err)
		return
	}
	utils.RespondWithSuccess(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *V1Handler) checkStudentEmail(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	exists, err := h.studentService.EmailExists(r.URL.Query().Get("email"), r.URL.Query().Get("excludeId"))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	utils.RespondWithSuccess(w, http.StatusOK, map[string]bool{"exists": exists})
}

func (h *V1Handler) getStudentsWithMemberships(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var clubIDs []string
	if raw := strings.TrimSpace(r.URL.Query().Get("clubIds")); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				clubIDs = append(clubIDs, id)
			}
		}
	}
	students, err := h.studentService.GetStudentsWithMemberships(clubIDs, r.URL.Query().Get("role"))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	utils.RespondWithSuccess(w, http.StatusOK, models.CollectionResponse{Items: students, Count: len(students)})
}

// ---- Invites ----

// handleInvites handles invite generation; redemption is a public route
func (h *V1Handler) handleInvites(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req models.CreateInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	invite, err := h.inviteService.GenerateInvite(user, &req)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	utils.RespondWithSuccess(w, http.StatusCreated, invite)
}

// handleInviteRedemption handles POST /api/v1/invites/:token/redeem, the
// unauthenticated self-registration path
func (h *V1Handler) handleInviteRedemption(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/invites")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[1] != "redeem" || parts[0] == "" {
		utils.RespondWithError(w, http.StatusNotFound, "Endpoint not found")
		return
	}
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.RedeemInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	student, role, err := h.inviteService.RedeemInvite(parts[0], &req)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	// A member invite doubles as a login; officer invites still require the
	// access code at the login endpoint
	if role == models.SessionRoleMember {
		if token, _, err := h.sessions.Login(&models.LoginRequest{Email: student.Email, Role: string(role)}); err == nil {
			h.sessions.IssueCookie(w, token)
		}
	}
	utils.RespondWithSuccess(w, http.StatusCreated, map[string]interface{}{
		"student": student,
		"role":    role,
	})
}
