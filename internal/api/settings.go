package api

import (
	"net/http"
	"strconv"

	"github.com/scriptd/scriptd/internal/model"
	"github.com/scriptd/scriptd/internal/notifier"
)

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.ListSettings(r.Context())
	if err != nil {
		writeStoreError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, settings)
}

func (s *Server) handlePostSettings(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	if err := decodeJSON(r, &body); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	for key, value := range body {
		if err := s.store.SetSetting(r.Context(), key, value); err != nil {
			writeStoreError(r.Context(), w, err)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

// handleSettingsApply rebuilds the Notifier's credentials from the latest
// settings (§6: "restart the chat-bot with latest credentials").
func (s *Server) handleSettingsApply(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.ListSettings(r.Context())
	if err != nil {
		writeStoreError(r.Context(), w, err)
		return
	}
	if s.notifier != nil {
		s.notifier.SetCredentials(credentialsFromSettings(settings))
	}
	w.WriteHeader(http.StatusOK)
}

type testTGBody struct {
	BotToken string `json:"bot_token"`
	ChatID   int64  `json:"chat_id"`
	ProxyURL string `json:"proxy_url"`
	Message  string `json:"message"`
}

// handleTestTelegram sends a one-shot notification with arbitrary creds
// supplied in the body, without touching the Notifier's configured state
// (§6).
func (s *Server) handleTestTelegram(w http.ResponseWriter, r *http.Request) {
	var body testTGBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	if body.Message == "" {
		body.Message = "scriptd: test notification"
	}

	creds := notifier.Credentials{BotToken: body.BotToken, ChatID: body.ChatID, ProxyURL: body.ProxyURL}
	if err := notifier.NotifyWith(r.Context(), creds, body.Message); err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func credentialsFromSettings(settings map[string]string) notifier.Credentials {
	chatID, _ := strconv.ParseInt(settings[model.SettingTGChatID], 10, 64)
	return notifier.Credentials{
		BotToken: settings[model.SettingTGBotToken],
		ChatID:   chatID,
		ProxyURL: settings[model.SettingTGProxy],
	}
}
