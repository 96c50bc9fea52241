package handler

import (
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/casebook/internal/auth"
	"github.com/prn-tf/casebook/internal/domain"
	"github.com/prn-tf/casebook/internal/repository"
	"github.com/prn-tf/casebook/internal/service"
)

// CaseHandler serves case submission, listing, mutation and deletion.
type CaseHandler struct {
	cases         *service.CaseService
	maxUploadSize int64
	logger        zerolog.Logger
}

// NewCaseHandler creates a new CaseHandler.
func NewCaseHandler(cases *service.CaseService, maxUploadSize int64, logger zerolog.Logger) *CaseHandler {
	return &CaseHandler{
		cases:         cases,
		maxUploadSize: maxUploadSize,
		logger:        logger.With().Str("handler", "case").Logger(),
	}
}

type submitResponse struct {
	Case           *domain.Case    `json:"case"`
	Patient        *domain.Patient `json:"patient"`
	IsNewCase      bool            `json:"is_new_case"`
	ExistingCaseID *int64          `json:"existing_case_id,omitempty"`
}

// Submit handles POST /api/cases. The request is multipart/form-data with
// text fields for the descriptors and any number of files under "images".
func (h *CaseHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, domain.NewValidationError("body", "malformed multipart body"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	uploads, closers, err := openUploads(r.MultipartForm.File["images"])
	if err != nil {
		writeError(w, err)
		return
	}
	defer closeAll(closers)

	out, err := h.cases.Submit(r.Context(), service.SubmitCaseInput{
		OwnerUserID: userID,
		NationalID:  r.FormValue("national_id"),
		GivenName:   optionalField(r, "given_name"),
		FamilyName:  optionalField(r, "family_name"),
		Region:      r.FormValue("region"),
		Etiology:    optionalField(r, "etiology"),
		Tissue:      optionalField(r, "tissue"),
		Diagnosis:   r.FormValue("diagnosis"),
		Treatment:   optionalField(r, "treatment"),
		Phase:       r.FormValue("phase"),
		Uploads:     uploads,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	resp := submitResponse{Case: out.Case, Patient: out.Patient, IsNewCase: !out.Merged}
	status := http.StatusCreated
	if out.Merged {
		status = http.StatusOK
		resp.ExistingCaseID = &out.Case.ID
	}
	writeJSON(w, status, resp)
}

// List handles GET /api/cases. Query parameters narrow the listing.
func (h *CaseHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	q := r.URL.Query()

	filter := repository.CaseFilter{
		NationalID: q.Get("national_id"),
		Region:     q.Get("region"),
		Etiology:   q.Get("etiology"),
		Tissue:     q.Get("tissue"),
		Diagnosis:  q.Get("diagnosis"),
		Treatment:  q.Get("treatment"),
	}
	if p := q.Get("phase"); p != "" {
		phase, err := domain.ParsePhase(p)
		if err != nil {
			writeError(w, domain.NewValidationError("phase", err.Error()))
			return
		}
		filter.Phase = phase
	}

	cases, err := h.cases.List(r.Context(), userID, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cases": cases})
}

// ListIncomplete handles GET /api/cases/incomplete.
func (h *CaseHandler) ListIncomplete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	cases, err := h.cases.ListIncomplete(r.Context(), userID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cases": cases})
}

// ListPatients handles GET /api/patients.
func (h *CaseHandler) ListPatients(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	patients, err := h.cases.ListPatients(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"patients": patients})
}

// Get handles GET /api/cases/{caseID}.
func (h *CaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	caseID, err := pathID(r, "caseID")
	if err != nil {
		writeError(w, err)
		return
	}

	c, err := h.cases.Get(r.Context(), userID, caseID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type updateCaseRequest struct {
	Region    string  `json:"region"`
	Diagnosis string  `json:"diagnosis"`
	Status    string  `json:"status"`
	Etiology  *string `json:"etiology"`
	Tissue    *string `json:"tissue"`
	Treatment *string `json:"treatment"`
	Phase     string  `json:"phase"`
}

// Update handles PATCH /api/cases/{caseID}.
func (h *CaseHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	caseID, err := pathID(r, "caseID")
	if err != nil {
		writeError(w, err)
		return
	}

	var req updateCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.NewValidationError("body", "malformed JSON body"))
		return
	}

	c, err := h.cases.Update(r.Context(), service.UpdateCaseInput{
		OwnerUserID: userID,
		CaseID:      caseID,
		Region:      req.Region,
		Diagnosis:   req.Diagnosis,
		Status:      req.Status,
		Etiology:    req.Etiology,
		Tissue:      req.Tissue,
		Treatment:   req.Treatment,
		Phase:       req.Phase,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Delete handles DELETE /api/cases/{caseID}.
func (h *CaseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	caseID, err := pathID(r, "caseID")
	if err != nil {
		writeError(w, err)
		return
	}

	deleted, err := h.cases.Delete(r.Context(), userID, caseID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted_image_count": deleted})
}

// AddImages handles POST /api/cases/{caseID}/images.
func (h *CaseHandler) AddImages(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	caseID, err := pathID(r, "caseID")
	if err != nil {
		writeError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, domain.NewValidationError("body", "malformed multipart body"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	uploads, closers, err := openUploads(r.MultipartForm.File["images"])
	if err != nil {
		writeError(w, err)
		return
	}
	defer closeAll(closers)

	images, err := h.cases.AddImages(r.Context(), service.AddImagesInput{
		OwnerUserID: userID,
		CaseID:      caseID,
		Phase:       r.FormValue("phase"),
		Uploads:     uploads,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"images": images})
}

// DeleteImage handles DELETE /api/images/{imageID}.
func (h *CaseHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	imageID, err := pathID(r, "imageID")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.cases.DeleteImage(r.Context(), userID, imageID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Helpers
// =============================================================================

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id < 1 {
		return 0, domain.NewValidationError(name, "must be a positive integer")
	}
	return id, nil
}

// optionalField returns nil when the form field is absent or empty.
func optionalField(r *http.Request, name string) *string {
	v := r.FormValue(name)
	if v == "" {
		return nil
	}
	return &v
}

// openUploads opens every multipart file and pairs it with its metadata.
func openUploads(headers []*multipart.FileHeader) ([]service.Upload, []multipart.File, error) {
	uploads := make([]service.Upload, 0, len(headers))
	closers := make([]multipart.File, 0, len(headers))

	for _, fh := range headers {
		file, err := fh.Open()
		if err != nil {
			closeAll(closers)
			return nil, nil, domain.NewValidationError("images", "unreadable file in upload")
		}
		closers = append(closers, file)
		uploads = append(uploads, service.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        file,
		})
	}
	return uploads, closers, nil
}

func closeAll(files []multipart.File) {
	for _, f := range files {
		f.Close()
	}
}
