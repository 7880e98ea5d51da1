package storage

import (
	"chat-relay/domain/chat"
	"fmt"
	"strings"
)

// Every numeric part of a key is padded to 20 digits so that the
// lexicographical order of keys is the numerical order of IDs.
const (
	MessagePrefix          = "msg:"
	MessageByGroupPrefix   = "msg_group:"
	MessageByRecipientPref = "msg_recipient:"
	UserPrefix             = "user:"
	UsernamePrefix         = "username:"
	GroupPrefix            = "group:"
	MemberPrefix           = "member:"
	UserGroupPrefix        = "user_group:"

	messageSequence = "seq:message"
	userSequence    = "seq:user"
	groupSequence   = "seq:group"
)

func pad(id int64) string {
	return fmt.Sprintf("%020d", id)
}

func messageKey(id chat.MessageID) []byte {
	return []byte(MessagePrefix + pad(int64(id)))
}

func messageByGroupPrefix(groupID chat.GroupID) string {
	return MessageByGroupPrefix + pad(int64(groupID)) + ":"
}

func messageByRecipientPrefix(userID chat.UserID) string {
	return MessageByRecipientPref + pad(int64(userID)) + ":"
}

func userKey(id chat.UserID) []byte {
	return []byte(UserPrefix + pad(int64(id)))
}

func usernameKey(username string) []byte {
	return []byte(UsernamePrefix + strings.ToLower(username))
}

func groupKey(id chat.GroupID) []byte {
	return []byte(GroupPrefix + pad(int64(id)))
}

func memberPrefix(groupID chat.GroupID) string {
	return MemberPrefix + pad(int64(groupID)) + ":"
}

func memberKey(groupID chat.GroupID, userID chat.UserID) []byte {
	return []byte(memberPrefix(groupID) + pad(int64(userID)))
}

func userGroupPrefix(userID chat.UserID) string {
	return UserGroupPrefix + pad(int64(userID)) + ":"
}

func userGroupKey(userID chat.UserID, groupID chat.GroupID) []byte {
	return []byte(userGroupPrefix(userID) + pad(int64(groupID)))
}
