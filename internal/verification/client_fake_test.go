package verification

import (
	"context"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/gatewarden/gatewarden/internal/platform"
)

// sentMessage records one channel message accepted by the fake client.
type sentMessage struct {
	ChannelID    snowflake.ID
	MessageID    snowflake.ID
	Content      string
	MentionRoles []snowflake.ID
}

// roleChange records one role grant or revocation.
type roleChange struct {
	UserID snowflake.ID
	RoleID snowflake.ID
	Reason string
}

// fakeClient is an in-memory platform.Client. Zero value is usable; error
// maps and the reaction answer are configured per test.
type fakeClient struct {
	mu sync.Mutex

	members   []platform.Member
	guildSize int

	// fresh overrides GetMember responses, simulating members whose state
	// changed between the roster snapshot and request execution.
	fresh map[snowflake.ID]platform.Member

	readyErr     error
	listErr      error
	guildSizeErr error
	sendErr      error

	getMemberErr map[snowflake.ID]error
	addRoleErr   map[snowflake.ID]error
	kickErr      map[snowflake.ID]error
	dmErr        map[snowflake.ID]error
	deleteErr    error

	// reaction answers the next AwaitReaction call; the zero value expires
	// the prompt instead.
	reaction platform.Reaction

	sent           []sentMessage
	dms            map[snowflake.ID][]string
	rolesAdded     []roleChange
	rolesRemoved   []roleChange
	kicked         []snowflake.ID
	deleted        []platform.MessageHandle
	edits          map[snowflake.ID]string
	reactionsAdded map[snowflake.ID][]string
	cleared        []snowflake.ID
	awaitCalls     int
	lastResponders map[snowflake.ID]struct{}
	messageSeq     uint64
}

func (f *fakeClient) WaitUntilReady(context.Context) error { return f.readyErr }

func (f *fakeClient) ListMembers(context.Context) ([]platform.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.listErr != nil {
		return nil, f.listErr
	}

	return append([]platform.Member(nil), f.members...), nil
}

func (f *fakeClient) GetMember(_ context.Context, userID snowflake.ID) (platform.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.getMemberErr[userID]; err != nil {
		return platform.Member{}, err
	}

	if m, ok := f.fresh[userID]; ok {
		return m, nil
	}

	for _, m := range f.members {
		if m.ID == userID {
			return m, nil
		}
	}

	return platform.Member{}, platform.ErrNotFound
}

func (f *fakeClient) GuildSize(context.Context) (int, error) {
	if f.guildSizeErr != nil {
		return 0, f.guildSizeErr
	}

	return f.guildSize, nil
}

func (f *fakeClient) SendDirectMessage(_ context.Context, userID snowflake.ID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.dmErr[userID]; err != nil {
		return err
	}

	if f.dms == nil {
		f.dms = make(map[snowflake.ID][]string)
	}

	f.dms[userID] = append(f.dms[userID], content)

	return nil
}

func (f *fakeClient) AddRole(_ context.Context, userID, roleID snowflake.ID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.addRoleErr[userID]; err != nil {
		return err
	}

	f.rolesAdded = append(f.rolesAdded, roleChange{UserID: userID, RoleID: roleID, Reason: reason})

	return nil
}

func (f *fakeClient) RemoveRole(_ context.Context, userID, roleID snowflake.ID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.rolesRemoved = append(f.rolesRemoved, roleChange{UserID: userID, RoleID: roleID, Reason: reason})

	return nil
}

func (f *fakeClient) Kick(_ context.Context, userID snowflake.ID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.kickErr[userID]; err != nil {
		return err
	}

	f.kicked = append(f.kicked, userID)

	return nil
}

func (f *fakeClient) SendMessage(
	_ context.Context, channelID snowflake.ID, content string, mentionRoles ...snowflake.ID,
) (platform.MessageHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sendErr != nil {
		return platform.MessageHandle{}, f.sendErr
	}

	// Snowflakes have millisecond resolution; the sequence keeps IDs of
	// messages sent within the same millisecond distinct.
	f.messageSeq++

	msg := sentMessage{
		ChannelID:    channelID,
		MessageID:    snowflake.New(time.Now()) + snowflake.ID(f.messageSeq),
		Content:      content,
		MentionRoles: mentionRoles,
	}
	f.sent = append(f.sent, msg)

	return platform.MessageHandle{ChannelID: channelID, MessageID: msg.MessageID}, nil
}

func (f *fakeClient) DeleteMessage(_ context.Context, channelID, messageID snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deleteErr != nil {
		return f.deleteErr
	}

	f.deleted = append(f.deleted, platform.MessageHandle{ChannelID: channelID, MessageID: messageID})

	return nil
}

func (f *fakeClient) EditMessage(_ context.Context, _, messageID snowflake.ID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.edits == nil {
		f.edits = make(map[snowflake.ID]string)
	}

	f.edits[messageID] = content

	return nil
}

func (f *fakeClient) AddReactions(_ context.Context, _, messageID snowflake.ID, options ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.reactionsAdded == nil {
		f.reactionsAdded = make(map[snowflake.ID][]string)
	}

	f.reactionsAdded[messageID] = append(f.reactionsAdded[messageID], options...)

	return nil
}

func (f *fakeClient) ClearReactions(_ context.Context, _, messageID snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cleared = append(f.cleared, messageID)

	return nil
}

func (f *fakeClient) AwaitReaction(
	_ context.Context, _ snowflake.ID,
	_ []string, responders map[snowflake.ID]struct{}, _ time.Duration,
) (platform.Reaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.awaitCalls++
	f.lastResponders = responders

	if f.reaction.Option == "" {
		return platform.Reaction{}, platform.ErrPromptExpired
	}

	return f.reaction, nil
}

// sentTo returns the messages the fake accepted for the given channel.
func (f *fakeClient) sentTo(channelID snowflake.ID) []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []sentMessage

	for _, msg := range f.sent {
		if msg.ChannelID == channelID {
			out = append(out, msg)
		}
	}

	return out
}

// rolesAddedTo returns the IDs of members granted the given role.
func (f *fakeClient) rolesAddedTo(roleID snowflake.ID) []snowflake.ID {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []snowflake.ID

	for _, change := range f.rolesAdded {
		if change.RoleID == roleID {
			out = append(out, change.UserID)
		}
	}

	return out
}
