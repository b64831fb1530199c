package domain

type Command interface {
	Room() RoomID
}

type PostMessageCommand struct {
	RoomID   RoomID
	SenderID string
	Content  Content
}

func (c PostMessageCommand) Room() RoomID { return c.RoomID }

// ReadRangeQuery pages a room log in ascending sequence order. A Limit
// of zero means "no limit"; callers page by repeating with the last
// returned sequence as AfterSeq.
type ReadRangeQuery struct {
	RoomID   RoomID
	AfterSeq uint64
	Limit    int
}

func (q ReadRangeQuery) Room() RoomID { return q.RoomID }
