// Package api — http.go поднимает HTTP-интерфейс движка.
// Слой тонкий: разбор запроса, вызов фасада/сервисов, маппинг
// типизированных ошибок на статусы. Вся доменная логика — ниже.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nuid"
	log "github.com/sirupsen/logrus"

	"campushub.ru/gamification/internal/common"
	"campushub.ru/gamification/internal/engine"
	"campushub.ru/gamification/internal/features/clubs"
	"campushub.ru/gamification/internal/features/events"
	"campushub.ru/gamification/internal/features/ledger"
	"campushub.ru/gamification/internal/features/members"
	"campushub.ru/gamification/internal/notify"
)

// Handler собирает HTTP-маршруты движка.
type Handler struct {
	Engine  *engine.Engine
	Members *members.Service
	Ledger  *ledger.Service
	Clubs   *clubs.Repository
	Events  *events.Repository
	Inbox   *notify.Repository

	// Argon2id-хеш админ-токена из конфига
	AdminTokenHash string

	// Генератор идентификаторов для ручных корректировок
	NewID func() string
}

// NewHandler создаёт HTTP-обработчик.
func NewHandler(eng *engine.Engine, membersSvc *members.Service, ledgerSvc *ledger.Service,
	clubsRepo *clubs.Repository, eventsRepo *events.Repository, inbox *notify.Repository,
	adminTokenHash string) *Handler {
	return &Handler{
		Engine:         eng,
		Members:        membersSvc,
		Ledger:         ledgerSvc,
		Clubs:          clubsRepo,
		Events:         eventsRepo,
		Inbox:          inbox,
		AdminTokenHash: adminTokenHash,
		NewID:          nuid.Next,
	}
}

// Router собирает маршруты.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Единственная точка входа движка
	r.Post("/v1/actions", h.handleProcessAction)

	// Чтение для платформы
	r.Get("/v1/members/{memberID}/points", h.handleGetPoints)
	r.Get("/v1/members/{memberID}/notifications", h.handleGetInbox)

	// Синхронизация сущностей со стороны платформы
	r.Put("/v1/members/{memberID}", h.handleSyncMember)
	r.Put("/v1/clubs/{clubID}", h.handleSyncClub)
	r.Put("/v1/events/{eventID}", h.handleSyncEvent)

	// Ручные операции под админ-токеном
	r.Group(func(admin chi.Router) {
		admin.Use(h.adminMiddleware)
		admin.Post("/v1/admin/adjust", h.handleAdminAdjust)
		admin.Post("/v1/admin/ban", h.handleAdminBan)
	})

	return r
}

// handleProcessAction — POST /v1/actions.
func (h *Handler) handleProcessAction(w http.ResponseWriter, r *http.Request) {
	var req engine.ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, engine.EngineResult{
			Success: false, Error: common.ErrInvalidRequest.Error(),
		})
		return
	}

	result, err := h.Engine.ProcessAction(r.Context(), req)
	writeJSON(w, statusForError(err), result)
}

// statusForError переводит типизированную ошибку фасада в HTTP-статус.
// Тело ответа везде одно — EngineResult; статус лишь дублирует причину
// для машинной маршрутизации.
func statusForError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, common.ErrUnknownAction), errors.Is(err, common.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrUserBanned):
		return http.StatusForbidden
	case errors.Is(err, common.ErrInsufficientPoints):
		return http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		// Сбой хранилища: повтор на усмотрение вызывающего
		return http.StatusServiceUnavailable
	}
}

// handleGetPoints — GET /v1/members/{memberID}/points.
func (h *Handler) handleGetPoints(w http.ResponseWriter, r *http.Request) {
	memberID := chi.URLParam(r, "memberID")
	points, err := h.Members.GetPoints(r.Context(), memberID)
	if err != nil {
		if errors.Is(err, common.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"memberId": memberID, "totalPoints": points})
}

// handleGetInbox — GET /v1/members/{memberID}/notifications.
func (h *Handler) handleGetInbox(w http.ResponseWriter, r *http.Request) {
	memberID := chi.URLParam(r, "memberID")

	// Неизвестный участник — 404, а не пустой инбокс
	exists, err := h.Members.Exists(r.Context(), memberID)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	if !exists {
		writeError(w, http.StatusNotFound, common.ErrUserNotFound)
		return
	}

	msgs, err := h.Inbox.ListByRecipient(r.Context(), memberID, 50)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": msgs})
}

type syncMemberRequest struct {
	Username       string `json:"username"`
	DisplayName    string `json:"displayName"`
	TelegramChatID *int64 `json:"telegramChatId,omitempty"`
}

// handleSyncMember — PUT /v1/members/{memberID}.
func (h *Handler) handleSyncMember(w http.ResponseWriter, r *http.Request) {
	memberID := chi.URLParam(r, "memberID")
	var req syncMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, common.ErrInvalidRequest)
		return
	}
	err := h.Members.Sync(r.Context(), memberID, members.UpsertInfo{
		Username:       req.Username,
		DisplayName:    req.DisplayName,
		TelegramChatID: req.TelegramChatID,
	})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type syncClubRequest struct {
	Name    string `json:"name"`
	OwnerID string `json:"ownerId"`
}

// handleSyncClub — PUT /v1/clubs/{clubID}.
func (h *Handler) handleSyncClub(w http.ResponseWriter, r *http.Request) {
	clubID := chi.URLParam(r, "clubID")
	var req syncClubRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, common.ErrInvalidRequest)
		return
	}
	if err := h.Clubs.Upsert(r.Context(), clubID, req.Name, req.OwnerID); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type syncEventRequest struct {
	ClubID string `json:"clubId"`
	Title  string `json:"title"`
}

// handleSyncEvent — PUT /v1/events/{eventID}.
func (h *Handler) handleSyncEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	var req syncEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, common.ErrInvalidRequest)
		return
	}
	if err := h.Events.Upsert(r.Context(), eventID, req.ClubID, req.Title); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// adminMiddleware проверяет админ-токен из заголовка X-Admin-Token.
func (h *Handler) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Admin-Token")
		if token == "" || !verifyArgon2id(token, h.AdminTokenHash) {
			log.WithField("path", r.URL.Path).Warn("Отклонён запрос с неверным админ-токеном")
			writeError(w, http.StatusUnauthorized, common.ErrNotAdmin)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type adminAdjustRequest struct {
	MemberID string `json:"memberId"`
	Amount   int64  `json:"amount"`
}

// handleAdminAdjust — POST /v1/admin/adjust.
// Ручная корректировка идёт через тот же атомарный путь начислений.
func (h *Handler) handleAdminAdjust(w http.ResponseWriter, r *http.Request) {
	var req adminAdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, common.ErrInvalidRequest)
		return
	}

	outcome, err := h.Ledger.AdminAdjust(r.Context(), h.NewID(), req.MemberID, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, err)
		case errors.Is(err, common.ErrUserNotFound):
			writeError(w, http.StatusNotFound, err)
		case errors.Is(err, common.ErrInsufficientPoints):
			writeError(w, http.StatusUnprocessableEntity, err)
		default:
			writeError(w, http.StatusServiceUnavailable, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activityId": outcome.Activity.ID})
}

type adminBanRequest struct {
	MemberID string `json:"memberId"`
	Banned   bool   `json:"banned"`
}

// handleAdminBan — POST /v1/admin/ban.
func (h *Handler) handleAdminBan(w http.ResponseWriter, r *http.Request) {
	var req adminBanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, common.ErrInvalidRequest)
		return
	}
	if err := h.Members.SetBanned(r.Context(), req.MemberID, req.Banned); err != nil {
		if errors.Is(err, common.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.WithError(err).Error("Ошибка записи HTTP-ответа")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
