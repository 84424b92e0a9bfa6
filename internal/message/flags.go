package message

import "strings"

// Flag is one member of the closed set of boolean message properties.
type Flag uint16

const (
	// FlagRead is set once the user has read the message.
	FlagRead Flag = 1 << iota
	// FlagStarred is set for starred messages.
	FlagStarred
	// FlagMentioned is set when the user was mentioned directly.
	FlagMentioned
	// FlagStreamWildcardMentioned is set for @all / @everyone style mentions.
	FlagStreamWildcardMentioned
	// FlagTopicWildcardMentioned is set for @topic mentions.
	FlagTopicWildcardMentioned
	// FlagHasAlertWord is set when the content matched a user alert word.
	FlagHasAlertWord
	// FlagCollapsed is set when the user collapsed the message.
	FlagCollapsed
	// FlagHasImage is derived from rendered content.
	FlagHasImage
	// FlagHasLink is derived from rendered content.
	FlagHasLink
	// FlagHasAttachment is derived from rendered content.
	FlagHasAttachment
)

// Server flag names.
const (
	ServerFlagRead                    = "read"
	ServerFlagStarred                 = "starred"
	ServerFlagMentioned               = "mentioned"
	ServerFlagStreamWildcardMentioned = "stream_wildcard_mentioned"
	ServerFlagTopicWildcardMentioned  = "topic_wildcard_mentioned"
	ServerFlagHasAlertWord            = "has_alert_word"
	ServerFlagCollapsed               = "collapsed"
)

var serverFlags = map[string]Flag{
	ServerFlagRead:                    FlagRead,
	ServerFlagStarred:                 FlagStarred,
	ServerFlagMentioned:               FlagMentioned,
	ServerFlagStreamWildcardMentioned: FlagStreamWildcardMentioned,
	ServerFlagTopicWildcardMentioned:  FlagTopicWildcardMentioned,
	ServerFlagHasAlertWord:            FlagHasAlertWord,
	ServerFlagCollapsed:               FlagCollapsed,
}

// serverFlagMask covers the flags the server owns; the rest are derived
// locally from content.
const serverFlagMask = FlagRead | FlagStarred | FlagMentioned | FlagStreamWildcardMentioned |
	FlagTopicWildcardMentioned | FlagHasAlertWord | FlagCollapsed

// contentFlagMask covers the flags derived from rendered content.
const contentFlagMask = FlagHasImage | FlagHasLink | FlagHasAttachment

// mentionMask is any flavor of mention.
const mentionMask = FlagMentioned | FlagStreamWildcardMentioned | FlagTopicWildcardMentioned

// contentDrivenMask covers the server flags that follow from message content.
// Edits only refresh these, since the others may race with local changes.
const contentDrivenMask = mentionMask | FlagHasAlertWord

// Flags is a bitset of Flag values.
type Flags uint16

// Has reports whether f is set.
func (fs Flags) Has(f Flag) bool { return fs&Flags(f) != 0 }

// With returns fs with f set.
func (fs Flags) With(f Flag) Flags { return fs | Flags(f) }

// Without returns fs with f cleared.
func (fs Flags) Without(f Flag) Flags { return fs &^ Flags(f) }

// Set returns fs with f set to on.
func (fs Flags) Set(f Flag, on bool) Flags {
	if on {
		return fs.With(f)
	}
	return fs.Without(f)
}

// Unread reports whether the message has not been read.
func (fs Flags) Unread() bool { return !fs.Has(FlagRead) }

// Mentioned reports whether any mention flag is set.
func (fs Flags) Mentioned() bool { return fs&Flags(mentionMask) != 0 }

// ParseServerFlags converts server flag names into a bitset. Unknown names
// are ignored.
func ParseServerFlags(names []string) Flags {
	var fs Flags
	for _, name := range names {
		if f, ok := serverFlags[strings.TrimSpace(name)]; ok {
			fs = fs.With(f)
		}
	}
	return fs
}

// FlagFromServer maps a single server flag name.
func FlagFromServer(name string) (Flag, bool) {
	f, ok := serverFlags[name]
	return f, ok
}

// withServerFlags replaces the server-owned bits of fs with server and keeps
// the content-derived bits.
func (fs Flags) withServerFlags(server Flags) Flags {
	return fs&Flags(contentFlagMask) | server&Flags(serverFlagMask)
}

// withContentFlags replaces the content-derived bits of fs.
func (fs Flags) withContentFlags(content Flags) Flags {
	return fs&Flags(serverFlagMask) | content&Flags(contentFlagMask)
}

// withContentDrivenFlags replaces the mention and alert word bits of fs.
func (fs Flags) withContentDrivenFlags(server Flags) Flags {
	return fs&^Flags(contentDrivenMask) | server&Flags(contentDrivenMask)
}
