package command

import (
	"regexp"
	"slices"
	"strings"
)

var (
	userRE    = regexp.MustCompile(`^(?:<@!?(\d{15,21})>|(\d{15,21}))$`)
	roleRE    = regexp.MustCompile(`^(?:<@&(\d{15,21})>|(\d{15,21}))$`)
	channelRE = regexp.MustCompile(`^(?:<#(\d{15,21})>|(\d{15,21}))$`)
)

func snowflake(re *regexp.Regexp, s string) (string, bool) {
	m := re.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", false
	}
	if m[1] != "" {
		return m[1], true
	}
	return m[2], true
}

// UserID extracts a user ID from a mention or a bare ID.
func UserID(s string) (string, bool) { return snowflake(userRE, s) }

// RoleID extracts a role ID from a role mention or a bare ID.
func RoleID(s string) (string, bool) { return snowflake(roleRE, s) }

// ChannelID extracts a channel ID from a channel link or a bare ID.
func ChannelID(s string) (string, bool) { return snowflake(channelRE, s) }

// Fields splits s on whitespace, except that text enclosed in double quotes
// is a single field with the quotes removed.
func Fields(s string) []string {
	var r []string
	for {
		s = strings.TrimLeft(s, " \t\n")
		if s == "" {
			return r
		}
		if s[0] == '"' {
			k := strings.IndexByte(s[1:], '"')
			if k >= 0 {
				if f := s[1 : k+1]; f != "" {
					r = append(r, f)
				}
				s = s[k+2:]
				continue
			}
		}
		k := strings.IndexAny(s, " \t\n")
		if k < 0 {
			return append(r, s)
		}
		r = append(r, s[:k])
		s = s[k:]
	}
}

// Flags separates --name value flags from positional fields.
// Names listed in bools take no value.
func Flags(fields []string, bools ...string) (pos []string, flags map[string]string) {
	flags = make(map[string]string)
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		name, ok := strings.CutPrefix(f, "--")
		if !ok || name == "" {
			pos = append(pos, f)
			continue
		}
		if slices.Contains(bools, name) || i+1 >= len(fields) {
			flags[name] = ""
			continue
		}
		flags[name] = fields[i+1]
		i++
	}
	return pos, flags
}
