// Package rest exposes the JSON HTTP API. Every route except registration,
// login and health requires a bearer token.
package rest

import (
	"chat-relay/auth"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"chat-relay/observability"
	"chat-relay/services"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

type API struct {
	log     *slog.Logger
	auth    services.IAuthService
	users   services.IUserService
	groups  services.IGroupService
	chat    services.IChatService
	tokens  *auth.TokenManager
	monitor *observability.Monitor
}

func NewAPI(log *slog.Logger, authService services.IAuthService, userService services.IUserService,
	groupService services.IGroupService, chatService services.IChatService,
	tokens *auth.TokenManager, monitor *observability.Monitor) *API {
	return &API{
		log:     log,
		auth:    authService,
		users:   userService,
		groups:  groupService,
		chat:    chatService,
		tokens:  tokens,
		monitor: monitor,
	}
}

// Register installs every route on mux.
func (a *API) Register(mux *http.ServeMux) {
	protected := a.tokens.Middleware(writeError)
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, protected(h))
	}

	mux.HandleFunc("GET /health", a.health)
	mux.HandleFunc("POST /users", a.register)
	mux.HandleFunc("POST /login", a.login)

	handle("GET /users", a.listUsers)
	handle("GET /users/{id}", a.getUser)

	handle("POST /groups", a.createGroup)
	handle("GET /groups/{id}", a.getGroup)
	handle("DELETE /groups/{id}", a.deleteGroup)
	handle("POST /groups/{id}/add_user", a.addUser)
	handle("GET /groups/{id}/users", a.listMembers)

	handle("POST /messages", a.postMessage)
	handle("GET /messages", a.listMessages)
	handle("GET /messages/search", a.searchMessages)
	handle("PUT /messages/{id}", a.editMessage)
	handle("DELETE /messages/{id}", a.deleteMessage)

	handle("GET /chats", a.listChats)
	handle("POST /chats", a.createPrivateChat)

	handle("GET /stats", a.stats)
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprint(w, "OK")
}

func (a *API) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.monitor.GetLatest())
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var body credentialsRequest
	if err := decode(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	user, err := a.auth.Register(r.Context(), body.Username, body.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user, 0))
}

// login accepts a JSON body as well as the OAuth2 password form.
func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var body credentialsRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		body.Username, body.Password = r.PostFormValue("username"), r.PostFormValue("password")
	} else if err := decode(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	session, err := a.auth.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: session.AccessToken.String(),
		TokenType:   "bearer",
		UserID:      session.UserID,
	})
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.users.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(users, toUserResponse))
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	user, err := a.users.GetUser(r.Context(), chat.UserID(id))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user, 0))
}

func (a *API) createGroup(w http.ResponseWriter, r *http.Request) {
	var body groupRequest
	if err := decode(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	group, err := a.groups.CreateGroup(r.Context(), requester(r), body.Name, body.Background)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGroupResponse(group))
}

func (a *API) getGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	group, err := a.groups.GetGroup(r.Context(), chat.GroupID(id))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGroupResponse(group))
}

func (a *API) deleteGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := a.groups.DeleteGroup(r.Context(), requester(r), chat.GroupID(id)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Message: "Group deleted"})
}

func (a *API) addUser(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	userID, err := queryID(r, "user_id")
	if err != nil {
		writeError(w, err)
		return
	}
	if userID == nil {
		writeError(w, fmt.Errorf("%w: user_id is required", errors.ErrInvalidArgument))
		return
	}
	if err := a.groups.AddUser(r.Context(), requester(r), chat.GroupID(groupID), chat.UserID(*userID)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Message: "User added to group"})
}

func (a *API) listMembers(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	users, err := a.groups.ListUsers(r.Context(), chat.GroupID(id))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(users, toMemberResponse))
}

func (a *API) postMessage(w http.ResponseWriter, r *http.Request) {
	var body messageRequest
	if err := decode(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	message, err := a.chat.PostMessage(r.Context(), chat.PostMessageCommand{
		AuthorID:    requester(r),
		Content:     body.Content,
		GroupID:     body.GroupID,
		RecipientID: body.RecipientID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMessageResponse(message, 0))
}

func (a *API) listMessages(w http.ResponseWriter, r *http.Request) {
	groupID, err := queryID(r, "group_id")
	if err != nil {
		writeError(w, err)
		return
	}
	recipientID, err := queryID(r, "recipient_id")
	if err != nil {
		writeError(w, err)
		return
	}
	cmd := chat.GetMessagesCommand{RequesterID: requester(r)}
	if groupID != nil {
		cmd.GroupID = lo.ToPtr(chat.GroupID(*groupID))
	}
	if recipientID != nil {
		cmd.RecipientID = lo.ToPtr(chat.UserID(*recipientID))
	}
	if cursor := r.URL.Query().Get("cursor"); cursor != "" {
		cmd.Cursor = &cursor
	}

	page, err := a.chat.GetMessages(r.Context(), cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageResponse{
		Messages:   lo.Map(page.Messages, toMessageResponse),
		NextCursor: page.NextCursor,
	})
}

func (a *API) searchMessages(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	groupID, err := queryID(r, "group_id")
	if err != nil {
		writeError(w, err)
		return
	}
	if groupID == nil {
		writeError(w, fmt.Errorf("%w: group_id is required", errors.ErrInvalidArgument))
		return
	}
	var limit int
	if raw := query.Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			writeError(w, fmt.Errorf("%w: invalid limit", errors.ErrInvalidArgument))
			return
		}
	}

	messages, err := a.chat.SearchMessages(r.Context(), chat.SearchMessagesCommand{
		RequesterID: requester(r),
		GroupID:     chat.GroupID(*groupID),
		Query:       query.Get("q"),
		Lang:        query.Get("lang"),
		Limit:       limit,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(messages, toMessageResponse))
}

func (a *API) editMessage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var body editRequest
	if err := decode(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	message, err := a.chat.EditMessage(r.Context(), chat.EditMessageCommand{
		RequesterID: requester(r),
		MessageID:   chat.MessageID(id),
		Content:     body.Content,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMessageResponse(message, 0))
}

func (a *API) deleteMessage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	err = a.chat.DeleteMessage(r.Context(), chat.DeleteMessageCommand{
		RequesterID: requester(r),
		MessageID:   chat.MessageID(id),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Message: "Message deleted"})
}

// listChats lists the conversations of the caller. A user_id other than the
// caller is refused.
func (a *API) listChats(w http.ResponseWriter, r *http.Request) {
	caller := requester(r)
	userID, err := queryID(r, "user_id")
	if err != nil {
		writeError(w, err)
		return
	}
	if userID != nil && chat.UserID(*userID) != caller {
		writeError(w, errors.ErrNotAuthorized)
		return
	}
	chats, err := a.groups.ListChats(r.Context(), caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(chats, toChatResponse))
}

func (a *API) createPrivateChat(w http.ResponseWriter, r *http.Request) {
	var body privateChatRequest
	if err := decode(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	created, err := a.groups.CreatePrivateChat(r.Context(), requester(r), body.UserID, body.RecipientID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toChatResponse(created, 0))
}
