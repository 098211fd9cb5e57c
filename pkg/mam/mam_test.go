package mam_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hive.go/kvstore/mapdb"

	"github.com/gohornet/mam/pkg/mam"
	"github.com/gohornet/mam/pkg/mask"
	"github.com/gohornet/mam/pkg/merkle"
	"github.com/gohornet/mam/pkg/signing"
	"github.com/gohornet/mam/pkg/trinary"
)

func testSeed() trinary.Trytes {
	return strings.Repeat("A", 81)
}

func TestNewChannel(t *testing.T) {
	channel, err := mam.NewChannel(testSeed(), signing.SecurityLevelMedium, mam.ModePublic, "")
	require.NoError(t, err)

	assert.EqualValues(t, 0, channel.Start())
	assert.EqualValues(t, 1, channel.Count())
	assert.EqualValues(t, 1, channel.NextCount())
	assert.EqualValues(t, 0, channel.Index())
	assert.Equal(t, trinary.Trytes(""), channel.SideKey())
	assert.Equal(t, mam.ModePublic, channel.Mode())
	assert.Equal(t, signing.SecurityLevelMedium, channel.Security())
}

func TestNewChannelValidation(t *testing.T) {
	_, err := mam.NewChannel("TOOSHORT", signing.SecurityLevelLow, mam.ModePublic, "")
	assert.ErrorIs(t, err, mam.ErrInvalidSeed)

	_, err = mam.NewChannel(strings.Repeat("a", 81), signing.SecurityLevelLow, mam.ModePublic, "")
	assert.ErrorIs(t, err, mam.ErrInvalidSeed)

	_, err = mam.NewChannel(testSeed(), 0, mam.ModePublic, "")
	assert.ErrorIs(t, err, signing.ErrInvalidSecurityLevel)

	_, err = mam.NewChannel(testSeed(), signing.SecurityLevelLow, "published", "")
	assert.ErrorIs(t, err, mam.ErrInvalidMode)

	_, err = mam.NewChannel(testSeed(), signing.SecurityLevelLow, mam.ModeRestricted, "")
	assert.ErrorIs(t, err, mam.ErrMissingSideKey)

	_, err = mam.NewChannel(testSeed(), signing.SecurityLevelLow, mam.ModePublic, "MYKEY")
	assert.ErrorIs(t, err, mam.ErrUnexpectedSideKey)

	_, err = mam.NewChannel(testSeed(), signing.SecurityLevelLow, mam.ModeRestricted, strings.Repeat("K", 82))
	assert.ErrorIs(t, err, mam.ErrInvalidSideKey)
}

func TestSideKeyPadding(t *testing.T) {
	channel, err := mam.NewChannel(testSeed(), signing.SecurityLevelLow, mam.ModeRestricted, "MYKEY")
	require.NoError(t, err)
	assert.Equal(t, trinary.Pad("MYKEY", 81), channel.SideKey())
	assert.Len(t, channel.SideKey(), 81)
}

func TestChannelRootDeterministic(t *testing.T) {
	channel, err := mam.NewChannel(testSeed(), signing.SecurityLevelMedium, mam.ModePublic, "")
	require.NoError(t, err)

	root, err := channel.Root()
	require.NoError(t, err)
	rootAgain, err := channel.Root()
	require.NoError(t, err)
	assert.Equal(t, root, rootAgain)
	assert.Len(t, root, 81)

	tree, err := merkle.NewTree(trinary.MustTrytesToTrits(testSeed()), 0, 1, signing.SecurityLevelMedium)
	require.NoError(t, err)
	assert.Equal(t, trinary.MustTritsToTrytes(tree.Root()), root)
}

func TestPublicMessageChain(t *testing.T) {
	channel, err := mam.NewChannel(testSeed(), signing.SecurityLevelLow, mam.ModePublic, "")
	require.NoError(t, err)

	initialRoot, err := channel.Root()
	require.NoError(t, err)

	first, err := channel.CreateMessage(context.Background(), "HELLO9WORLD")
	require.NoError(t, err)
	assert.Equal(t, initialRoot, first.Root)
	assert.Equal(t, first.Root, first.Address)

	second, err := channel.CreateMessage(context.Background(), "IOTA")
	require.NoError(t, err)

	parsedFirst, err := mam.ParseMessage(first.Payload, first.Root, "")
	require.NoError(t, err)
	assert.Equal(t, trinary.Trytes("HELLO9WORLD"), parsedFirst.Message)
	assert.Equal(t, second.Root, parsedFirst.NextRoot)

	parsedSecond, err := mam.ParseMessage(second.Payload, second.Root, "")
	require.NoError(t, err)
	assert.Equal(t, trinary.Trytes("IOTA"), parsedSecond.Message)
	assert.Equal(t, channel.NextRoot(), parsedSecond.NextRoot)
}

func TestChannelAdvances(t *testing.T) {
	channel, err := mam.NewChannel(testSeed(), signing.SecurityLevelLow, mam.ModePublic, "")
	require.NoError(t, err)

	_, err = channel.CreateMessage(context.Background(), "FIRST")
	require.NoError(t, err)
	assert.EqualValues(t, 1, channel.Start())
	assert.EqualValues(t, 0, channel.Index())
	assert.NotEmpty(t, channel.NextRoot())

	_, err = channel.CreateMessage(context.Background(), "SECOND")
	require.NoError(t, err)
	assert.EqualValues(t, 2, channel.Start())
	assert.EqualValues(t, 0, channel.Index())
}

func TestPrivateMessageAddress(t *testing.T) {
	channel, err := mam.NewChannel(testSeed(), signing.SecurityLevelLow, mam.ModePrivate, "")
	require.NoError(t, err)

	msg, err := channel.CreateMessage(context.Background(), "SECRET")
	require.NoError(t, err)
	assert.NotEqual(t, msg.Root, msg.Address)
	assert.Equal(t, trinary.MustTritsToTrytes(mask.Hash(trinary.MustTrytesToTrits(msg.Root))), msg.Address)

	parsed, err := mam.ParseMessage(msg.Payload, msg.Root, "")
	require.NoError(t, err)
	assert.Equal(t, trinary.Trytes("SECRET"), parsed.Message)
}

func TestRestrictedMessage(t *testing.T) {
	channel, err := mam.NewChannel(testSeed(), signing.SecurityLevelLow, mam.ModeRestricted, "MYKEY")
	require.NoError(t, err)

	msg, err := channel.CreateMessage(context.Background(), "RESTRICTED9DATA")
	require.NoError(t, err)

	// the short side key and the padded one decrypt alike
	parsed, err := mam.ParseMessage(msg.Payload, msg.Root, "MYKEY")
	require.NoError(t, err)
	assert.Equal(t, trinary.Trytes("RESTRICTED9DATA"), parsed.Message)

	parsed, err = mam.ParseMessage(msg.Payload, msg.Root, trinary.Pad("MYKEY", 81))
	require.NoError(t, err)
	assert.Equal(t, trinary.Trytes("RESTRICTED9DATA"), parsed.Message)

	// any other side key fails the root match
	_, err = mam.ParseMessage(msg.Payload, msg.Root, "WRONGKEY")
	assert.Error(t, err)

	_, err = mam.ParseMessage(msg.Payload, msg.Root, "")
	assert.Error(t, err)
}

func TestParseRejectsTamperedPayload(t *testing.T) {
	channel, err := mam.NewChannel(testSeed(), signing.SecurityLevelLow, mam.ModePublic, "")
	require.NoError(t, err)

	msg, err := channel.CreateMessage(context.Background(), "TAMPER9TEST")
	require.NoError(t, err)

	// flip one payload tryte inside the masked body
	payload := []byte(msg.Payload)
	pos := len(payload) / 2
	if payload[pos] == 'A' {
		payload[pos] = 'B'
	} else {
		payload[pos] = 'A'
	}
	_, err = mam.ParseMessage(trinary.Trytes(payload), msg.Root, "")
	assert.Error(t, err)
}

func TestParseRejectsWrongRoot(t *testing.T) {
	channel, err := mam.NewChannel(testSeed(), signing.SecurityLevelLow, mam.ModePublic, "")
	require.NoError(t, err)

	msg, err := channel.CreateMessage(context.Background(), "ROOTED")
	require.NoError(t, err)

	root := []byte(msg.Root)
	if root[0] == 'A' {
		root[0] = 'B'
	} else {
		root[0] = 'A'
	}
	_, err = mam.ParseMessage(msg.Payload, trinary.Trytes(root), "")
	assert.Error(t, err)
}

func TestParseValidation(t *testing.T) {
	_, err := mam.ParseMessage("ABC", "SHORT", "")
	assert.ErrorIs(t, err, mam.ErrInvalidRoot)

	_, err = mam.ParseMessage("abc", strings.Repeat("R", 81), "")
	assert.ErrorIs(t, err, mam.ErrInvalidPayload)

	_, err = mam.ParseMessage("ABC", strings.Repeat("R", 81), "")
	assert.ErrorIs(t, err, mam.ErrInvalidPayload)
}

func TestCreateMessageInvalidMessage(t *testing.T) {
	channel, err := mam.NewChannel(testSeed(), signing.SecurityLevelLow, mam.ModePublic, "")
	require.NoError(t, err)

	_, err = channel.CreateMessage(context.Background(), "lowercase")
	assert.ErrorIs(t, err, mam.ErrInvalidMessage)
}

func TestCreateMessageCancelledKeepsState(t *testing.T) {
	channel, err := mam.NewChannel(testSeed(), signing.SecurityLevelLow, mam.ModePublic, "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = channel.CreateMessage(ctx, "NEVER")
	require.Error(t, err)

	assert.EqualValues(t, 0, channel.Start())
	assert.EqualValues(t, 0, channel.Index())

	// the channel still publishes fine afterwards
	msg, err := channel.CreateMessage(context.Background(), "AFTER")
	require.NoError(t, err)
	parsed, err := mam.ParseMessage(msg.Payload, msg.Root, "")
	require.NoError(t, err)
	assert.Equal(t, trinary.Trytes("AFTER"), parsed.Message)
}

func TestSetNextCount(t *testing.T) {
	channel, err := mam.NewChannel(testSeed(), signing.SecurityLevelLow, mam.ModePublic, "")
	require.NoError(t, err)

	assert.ErrorIs(t, channel.SetNextCount(0), merkle.ErrInvalidLeafCount)
	require.NoError(t, channel.SetNextCount(2))

	// exhausting the current window switches to the announced size
	first, err := channel.CreateMessage(context.Background(), "ONE")
	require.NoError(t, err)
	assert.EqualValues(t, 2, channel.Count())
	assert.EqualValues(t, 1, channel.Start())
	assert.EqualValues(t, 0, channel.Index())

	// two messages now share one window root
	second, err := channel.CreateMessage(context.Background(), "TWO")
	require.NoError(t, err)
	assert.EqualValues(t, 1, channel.Index())
	third, err := channel.CreateMessage(context.Background(), "THREE")
	require.NoError(t, err)
	assert.EqualValues(t, 3, channel.Start())
	assert.Equal(t, second.Root, third.Root)

	parsedFirst, err := mam.ParseMessage(first.Payload, first.Root, "")
	require.NoError(t, err)
	assert.Equal(t, second.Root, parsedFirst.NextRoot)

	for msg, want := range map[*mam.Message]trinary.Trytes{second: "TWO", third: "THREE"} {
		parsed, err := mam.ParseMessage(msg.Payload, msg.Root, "")
		require.NoError(t, err)
		assert.Equal(t, want, parsed.Message)
	}
}

func TestStoreStateRoundTrip(t *testing.T) {
	channel, err := mam.NewChannel(testSeed(), signing.SecurityLevelLow, mam.ModeRestricted, "MYKEY")
	require.NoError(t, err)

	_, err = channel.CreateMessage(context.Background(), "PERSISTED")
	require.NoError(t, err)

	db := mapdb.NewMapDB()
	require.NoError(t, channel.StoreState(db))

	restored, err := mam.LoadChannel(db)
	require.NoError(t, err)
	assert.Equal(t, channel.Mode(), restored.Mode())
	assert.Equal(t, channel.Security(), restored.Security())
	assert.Equal(t, channel.SideKey(), restored.SideKey())
	assert.Equal(t, channel.Start(), restored.Start())
	assert.Equal(t, channel.Count(), restored.Count())
	assert.Equal(t, channel.NextCount(), restored.NextCount())
	assert.Equal(t, channel.Index(), restored.Index())
	assert.Equal(t, channel.NextRoot(), restored.NextRoot())

	// the restored channel continues the chain seamlessly
	root, err := restored.Root()
	require.NoError(t, err)
	assert.Equal(t, channel.NextRoot(), root)
}

func TestLoadChannelInvalidState(t *testing.T) {
	channel, err := mam.NewChannel(testSeed(), signing.SecurityLevelLow, mam.ModePublic, "")
	require.NoError(t, err)

	db := mapdb.NewMapDB()
	require.NoError(t, channel.StoreState(db))
	require.NoError(t, db.Set([]byte("count"), []byte("0")))

	_, err = mam.LoadChannel(db)
	assert.ErrorIs(t, err, mam.ErrInvalidStoredState)
}
