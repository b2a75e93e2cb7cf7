package types

import "nebula/nebula/sources/psql/models"

type CreateChatRequest struct {
	Title string `json:"title"`
}

type ChatResponse struct {
	Chat *models.Chat `json:"chat"`
}

type ChatListResponse struct {
	Chats []models.Chat `json:"chats"`
}

// MessageListResponse lists messages oldest first.
type MessageListResponse struct {
	Messages []models.Message `json:"messages"`
}

type DeleteChatResponse struct {
	Deleted int64 `json:"deleted"`
}
