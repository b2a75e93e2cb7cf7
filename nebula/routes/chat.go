package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"nebula/nebula/controllers"
	"nebula/nebula/middlewares"
	"nebula/nebula/sources/psql/dao"
	"nebula/nebula/utils/types"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func ChatRoutes(ctrl *controllers.ChatController, auth *middlewares.Authenticator) chi.Router {
	r := chi.NewRouter()
	r.Use(middlewares.AuthMiddleware(auth))

	r.Post("/", handleJSON(func(r *http.Request) (any, int, error) {
		var req types.CreateChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, http.StatusBadRequest, errors.New("invalid request body")
		}
		chat, err := ctrl.CreateChat(r.Context(), identity(r).UserID, req.Title)
		if err != nil {
			return nil, chatStatus(err), err
		}
		return types.ChatResponse{Chat: chat}, http.StatusCreated, nil
	}))

	r.Get("/get-chats", handleJSON(func(r *http.Request) (any, int, error) {
		chats, err := ctrl.ListChats(r.Context(), identity(r).UserID)
		if err != nil {
			return nil, http.StatusInternalServerError, err
		}
		return types.ChatListResponse{Chats: chats}, http.StatusOK, nil
	}))

	r.Get("/get-messages/{chatID}", handleJSON(func(r *http.Request) (any, int, error) {
		chatID, err := uuid.Parse(chi.URLParam(r, "chatID"))
		if err != nil {
			return nil, http.StatusBadRequest, errors.New("invalid chat id")
		}
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			if limit, err = strconv.Atoi(v); err != nil {
				return nil, http.StatusBadRequest, errors.New("invalid limit")
			}
		}
		var before *time.Time
		if v := r.URL.Query().Get("before"); v != "" {
			t, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				return nil, http.StatusBadRequest, errors.New("invalid before timestamp")
			}
			before = &t
		}
		msgs, err := ctrl.ListMessages(r.Context(), identity(r).UserID, chatID, limit, before)
		if err != nil {
			return nil, chatStatus(err), err
		}
		return types.MessageListResponse{Messages: msgs}, http.StatusOK, nil
	}))

	r.Delete("/delete-chat/{chatID}", handleJSON(func(r *http.Request) (any, int, error) {
		chatID, err := uuid.Parse(chi.URLParam(r, "chatID"))
		if err != nil {
			return nil, http.StatusBadRequest, errors.New("invalid chat id")
		}
		n, err := ctrl.DeleteChat(r.Context(), identity(r).UserID, chatID)
		if err != nil {
			return nil, chatStatus(err), err
		}
		return types.DeleteChatResponse{Deleted: n}, http.StatusOK, nil
	}))

	return r
}

func chatStatus(err error) int {
	switch {
	case errors.Is(err, dao.ErrChatNotFound):
		return http.StatusNotFound
	case errors.Is(err, dao.ErrInvalidTitle):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
