package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/linkman/internal/middleware"
	"github.com/hitoshi/linkman/internal/model"
)

// LinkServiceInterface はリンクハンドラーが必要とするサービスインターフェース。
// 全操作は所有者IDでスコープされる。
type LinkServiceInterface interface {
	// Submit はURLを短縮登録する。同一URLの再投稿は既存リンクを返す。
	Submit(ctx context.Context, ownerID, rawURL string) (*model.Link, error)
	// Resolve は短縮コードを所有者スコープで元URLへ解決する。
	Resolve(ctx context.Context, ownerID, code string) (*model.Link, error)
	// List は所有者のリンク一覧を返す。
	List(ctx context.Context, ownerID string) ([]*model.Link, error)
	// Delete は所有者のリンクを削除する。
	Delete(ctx context.Context, ownerID, code string) error
}

// LinkHandler は短縮リンク管理のHTTPハンドラー。
type LinkHandler struct {
	service LinkServiceInterface
	baseURL string
}

// NewLinkHandler はLinkHandlerを生成する。
// baseURLは短縮URLの組み立てに使用する。
func NewLinkHandler(service LinkServiceInterface, baseURL string) *LinkHandler {
	return &LinkHandler{
		service: service,
		baseURL: baseURL,
	}
}

// submitLinkRequest はリンク登録リクエストのボディ。
type submitLinkRequest struct {
	URL string `json:"url"`
}

// linkResponse はリンク情報のAPIレスポンス。
type linkResponse struct {
	ShortCode   string    `json:"short_code"`
	ShortURL    string    `json:"short_url"`
	OriginalURL string    `json:"original_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateLink はリンクの短縮登録を処理する。
// POST /api/links
func (h *LinkHandler) CreateLink(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, model.NewUnauthenticatedError())
		return
	}

	var req submitLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, model.NewInvalidRequestError())
		return
	}

	link, err := h.service.Submit(r.Context(), userID, req.URL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(h.toLinkResponse(link))
}

// ListLinks は現在のユーザーのリンク一覧を返す。
// GET /api/links
func (h *LinkHandler) ListLinks(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, model.NewUnauthenticatedError())
		return
	}

	links, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]linkResponse, 0, len(links))
	for _, link := range links {
		responses = append(responses, h.toLinkResponse(link))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

// DeleteLink はリンクを削除する。
// DELETE /api/links/{code}
func (h *LinkHandler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, model.NewUnauthenticatedError())
		return
	}

	code := chi.URLParam(r, "code")

	if err := h.service.Delete(r.Context(), userID, code); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Redirect は短縮コードを解決して元URLへ302リダイレクトする。
// 他ユーザー所有のコードと存在しないコードは同じ404になる。
// GET /{code}
func (h *LinkHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, model.NewUnauthenticatedError())
		return
	}

	code := chi.URLParam(r, "code")

	link, err := h.service.Resolve(r.Context(), userID, code)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	http.Redirect(w, r, link.OriginalURL, http.StatusFound)
}

// toLinkResponse はmodel.LinkからAPIレスポンスに変換する。
func (h *LinkHandler) toLinkResponse(link *model.Link) linkResponse {
	return linkResponse{
		ShortCode:   link.ShortCode,
		ShortURL:    h.baseURL + "/" + link.ShortCode,
		OriginalURL: link.OriginalURL,
		CreatedAt:   link.CreatedAt,
	}
}

// --- ヘルパー関数 ---

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
// ステータスコードはエラーコードから導出される。
func writeAPIErrorResponse(w http.ResponseWriter, apiErr *model.APIError) {
	middleware.WriteAPIError(w, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPレスポンスに変換する。
// APIError以外のエラーは詳細をログのみに記録し、クライアントには
// ストア障害の一般的なメッセージを返す。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, apiErr)
		return
	}

	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, model.NewStoreUnavailableError())
}
