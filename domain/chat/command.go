package chat

// Command is a request issued by an authenticated user.
type Command interface {
	Requester() UserID
}

// PostMessageCommand targets exactly one of GroupID or RecipientID.
type PostMessageCommand struct {
	AuthorID    UserID
	Content     string
	GroupID     *GroupID
	RecipientID *UserID
}

func (p PostMessageCommand) Requester() UserID {
	return p.AuthorID
}

type EditMessageCommand struct {
	RequesterID UserID
	MessageID   MessageID
	Content     string
}

func (e EditMessageCommand) Requester() UserID {
	return e.RequesterID
}

type DeleteMessageCommand struct {
	RequesterID UserID
	MessageID   MessageID
}

func (d DeleteMessageCommand) Requester() UserID {
	return d.RequesterID
}

// GetMessagesCommand reads a history page. Exactly one of GroupID or
// RecipientID is set; Cursor continues a previous page.
type GetMessagesCommand struct {
	RequesterID UserID
	GroupID     *GroupID
	RecipientID *UserID
	Cursor      *string
}

func (g GetMessagesCommand) Requester() UserID {
	return g.RequesterID
}

type SearchMessagesCommand struct {
	RequesterID UserID  `validate:"required"`
	GroupID     GroupID `validate:"required"`
	Query       string  `validate:"required"`
	Lang        string  `validate:"omitempty,len=2"`
	Limit       int     `validate:"gte=0,lte=100"`
}

func (s SearchMessagesCommand) Requester() UserID {
	return s.RequesterID
}
