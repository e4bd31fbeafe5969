package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"sdata.ir/ai-chat/internal/core"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		respondError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"message": message})
}

// serviceError maps the core error taxonomy to a status and a
// user-facing message; anything unrecognized is a logged 500.
func (h *APIHandler) serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrIdentityMissing):
		respondError(w, http.StatusBadRequest, "شناسه کاربر یا مهمان الزامی است")
	case errors.Is(err, core.ErrChatNotFound):
		respondError(w, http.StatusNotFound, "چت یافت نشد")
	case errors.Is(err, core.ErrQuotaExceeded):
		respondError(w, http.StatusForbidden, "محدودیت پیام برای کاربران مهمان: لطفاً ثبت نام کنید")
	case errors.Is(err, core.ErrGenerationUnavailable):
		respondError(w, http.StatusInternalServerError, "کلید API هوش مصنوعی تنظیم نشده است")
	case errors.Is(err, core.ErrGenerationFailed):
		respondError(w, http.StatusInternalServerError, "خطا در ارتباط با سرویس هوش مصنوعی")
	default:
		h.logger.Errorw("unexpected service error", "error", err)
		respondError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}
