package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/internal/domain/scoring"
)

const dateLayout = "2006-01-02"

// profileRequest is an inline profile for POST /similarity.
type profileRequest struct {
	ID              string  `json:"id"`
	FirstName       string  `json:"first_name"`
	Surname         string  `json:"surname"`
	Description     string  `json:"description" validate:"max=10000"`
	BirthDate       string  `json:"birth_date" validate:"required,datetime=2006-01-02"`
	Gender          string  `json:"gender" validate:"omitempty,oneof=man woman"`
	CityName        string  `json:"city_name" validate:"required,max=200"`
	ProfessionLabel string  `json:"profession_label" validate:"required,max=200"`
	ExperienceYears float64 `json:"experience_years" validate:"gte=0,lte=80"`
}

func (p profileRequest) toProfile() model.Profile {
	birth, _ := time.Parse(dateLayout, p.BirthDate)
	return model.Profile{
		ID:              p.ID,
		FirstName:       p.FirstName,
		Surname:         p.Surname,
		Description:     p.Description,
		BirthDate:       birth,
		Gender:          model.Gender(p.Gender),
		CityName:        p.CityName,
		ProfessionLabel: p.ProfessionLabel,
		ExperienceYears: p.ExperienceYears,
	}
}

type pairRequest struct {
	A profileRequest `json:"a"`
	B profileRequest `json:"b"`
}

type descriptionRequest struct {
	A string `json:"a" validate:"max=10000"`
	B string `json:"b" validate:"max=10000"`
}

type prepareRequest struct {
	Text string `json:"text" validate:"required,max=10000"`
}

type factorResponse struct {
	Factor     string  `json:"factor"`
	Similarity float64 `json:"similarity"`
}

// SimilarityHandler scores ad-hoc pairs and single factors.
type SimilarityHandler struct {
	deps     SimilarityDependencies
	validate *validator.Validate
	now      func() time.Time
}

// NewSimilarityHandler creates a new similarity handler.
func NewSimilarityHandler(deps SimilarityDependencies) *SimilarityHandler {
	return &SimilarityHandler{deps: deps, validate: validator.New(), now: time.Now}
}

// decode reads and validates a JSON body, writing a 400 on failure.
func (h *SimilarityHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := decodeJSON(w, r, v); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, codeBadRequest, err)
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return false
	}
	return true
}

// HandlePair handles POST /similarity.
func (h *SimilarityHandler) HandlePair(w http.ResponseWriter, r *http.Request) {
	var req pairRequest
	if !h.decode(w, r, &req) {
		return
	}
	b, err := h.deps.PairSimilarity(r.Context(), req.A.toProfile(), req.B.toProfile())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// HandleProfession handles GET /similarity/profession?a=&b=.
func (h *SimilarityHandler) HandleProfession(w http.ResponseWriter, r *http.Request) {
	a, err := queryString(r, "a")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err)
		return
	}
	b, err := queryString(r, "b")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, factorResponse{
		Factor:     scoring.FactorProfession,
		Similarity: scoring.ProfessionSimilarity(a, b),
	})
}

// HandleAge handles GET /similarity/age?a=YYYY-MM-DD&b=YYYY-MM-DD.
func (h *SimilarityHandler) HandleAge(w http.ResponseWriter, r *http.Request) {
	var dates [2]time.Time
	for i, key := range []string{"a", "b"} {
		raw, err := queryString(r, key)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, err)
			return
		}
		d, err := time.Parse(dateLayout, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, fmt.Errorf("%w: %s=%q", ErrInvalidParam, key, raw))
			return
		}
		dates[i] = d
	}
	writeJSON(w, http.StatusOK, factorResponse{
		Factor:     scoring.FactorAge,
		Similarity: scoring.AgeSimilarity(dates[0], dates[1], h.now()),
	})
}

// HandleExperience handles GET /similarity/experience?a=&b=.
func (h *SimilarityHandler) HandleExperience(w http.ResponseWriter, r *http.Request) {
	a, err := queryFloat(r, "a")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err)
		return
	}
	b, err := queryFloat(r, "b")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, factorResponse{
		Factor:     scoring.FactorExperience,
		Similarity: scoring.ExperienceSimilarity(a, b),
	})
}

// HandleDescription handles POST /similarity/description.
func (h *SimilarityHandler) HandleDescription(w http.ResponseWriter, r *http.Request) {
	var req descriptionRequest
	if !h.decode(w, r, &req) {
		return
	}
	cmp, err := h.deps.DescriptionSimilarity(r.Context(), req.A, req.B)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

// HandlePrepare handles POST /text/prepare.
func (h *SimilarityHandler) HandlePrepare(w http.ResponseWriter, r *http.Request) {
	var req prepareRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.deps.PrepareText(r.Context(), req.Text)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
