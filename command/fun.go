package command

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"unicode/utf16"
)

var magic = [...]string{
	"Certainly",
	"It is decidedly so",
	"Without a doubt",
	"Yes, definitely",
	"You may rely on it",
	"As I see it, yes",
	"Most likely",
	"Outlook good",
	"Sure",
	"Signs point to yes",
	"Reply hazy, try again",
	"Ask again later",
	"Better not tell you now",
	"Cannot predict now",
	"Concentrate and ask again",
	"Don't count on it",
	"My reply is no",
	"My sources say no",
	"Outlook not so good",
	"Very doubtful",
}

// EightBall answers a yes or no question.
//   - question: The question. It must be more than one word.
func EightBall(ctx context.Context, robo *Robot, call *Invocation) error {
	q := strings.TrimSpace(call.Args["question"])
	if !strings.ContainsAny(q, " ") {
		return call.Channel.Say(ctx, "🎱 You need to provide an actual question...")
	}
	return call.Channel.Say(ctx, "🎱 "+magic[rand.IntN(len(magic))])
}

// Choose picks one of several choices. Quoted choices may contain spaces.
//   - choices: The choices.
func Choose(ctx context.Context, robo *Robot, call *Invocation) error {
	c := Fields(call.Args["choices"])
	if len(c) < 2 {
		return Warning("You need to provide at least 2 choices for me to choose from!")
	}
	return call.Channel.Say(ctx, "I choose: "+c[rand.IntN(len(c))])
}

// Coin flips up to 50 coins.
//   - n: Number of coins. Optional.
func Coin(ctx context.Context, robo *Robot, call *Invocation) error {
	n := 1
	if s := call.Args["n"]; s != "" {
		var err error
		n, err = strconv.Atoi(s)
		if err != nil || n < 1 || n > 50 {
			return Warning("The number of coins must be between 1 and 50.")
		}
	}
	if n == 1 {
		return call.Channel.Say(ctx, "I flipped a coin and got "+flip())
	}
	res := make([]string, n)
	heads := 0
	for i := range res {
		res[i] = flip()
		if res[i] == "Heads" {
			heads++
		}
	}
	s := fmt.Sprintf("I flipped %d coins and got: %s\n(%d heads and %d tails)", n, strings.Join(res, ", "), heads, n-heads)
	return call.Channel.Say(ctx, s)
}

func flip() string {
	if rand.IntN(2) == 0 {
		return "Heads"
	}
	return "Tails"
}

// hash is the 31-multiplier string hash over UTF-16 code units, continuing
// from h.
func hash(h int32, s string) int32 {
	for _, c := range utf16.Encode([]rune(s)) {
		h = h*31 + int32(c)
	}
	return h
}

// score maps a hash to a rating in [base, base+(mod-1)/10].
func score(h int32, mod int32, base float64) string {
	r := h % mod
	if r < 0 {
		r = -r
	}
	return strconv.FormatFloat(float64(r)/10+base, 'f', 1, 64)
}

// resolve replaces a user mention with the member's name.
func resolve(ctx context.Context, robo *Robot, call *Invocation, s string) string {
	id, ok := UserID(s)
	if !ok || !strings.HasPrefix(s, "<@") || call.Message.Guild == "" {
		return s
	}
	m, err := robo.Chat.Member(ctx, call.Message.Guild, id)
	if err != nil {
		return s
	}
	return m.Name
}

// Rate gives something a deterministic rating out of 10.
//   - thing: The thing to rate. "me" or a mention of the invoker rates them.
func Rate(ctx context.Context, robo *Robot, call *Invocation) error {
	t := strings.TrimSpace(call.Args["thing"])
	if t == "" {
		return Warning("You need to give me something to rate.")
	}
	t = resolve(ctx, robo, call, t)
	if t == "me" {
		t = call.Message.Name
	}
	h := hash(0, t)
	switch {
	case strings.EqualFold(t, robo.Self.Name):
		return call.Channel.Say(ctx, "I would rate myself a 10/10, of course.")
	case t == call.Message.Name || strings.EqualFold(t, "me"):
		return call.Channel.Say(ctx, "I would rate you a "+score(h, 50, 5)+"/10")
	default:
		return call.Channel.Say(ctx, "I would rate `"+t+"` a "+score(h, 90, 1)+"/10")
	}
}

// Ship rates a pairing.
//   - args: The two halves. Either may be a mention. The first may be quoted
//     to contain spaces, and the second is the rest of the text.
func Ship(ctx context.Context, robo *Robot, call *Invocation) error {
	f := Fields(call.Args["args"])
	if len(f) < 2 {
		return Warning("You need to give me two things to ship.")
	}
	a := resolve(ctx, robo, call, f[0])
	b := resolve(ctx, robo, call, strings.Join(f[1:], " "))
	h := hash(hash(0, a), b)
	return call.Channel.Say(ctx, "I would rate the ship between `"+a+"` and `"+b+"` a "+score(h, 90, 1)+"/10")
}

// Say deletes the invoking message and repeats its text.
//   - msg: Text to say.
func Say(ctx context.Context, robo *Robot, call *Invocation) error {
	t := strings.TrimSpace(call.Args["msg"])
	if t == "" {
		return Warning("You need to give me something to say.")
	}
	if err := robo.Chat.DeleteMessages(ctx, call.Message.Channel, []string{call.Message.ID}); err != nil {
		return fmt.Errorf("couldn't delete say message: %w", err)
	}
	return call.Channel.Say(ctx, t)
}

// Joke posts a joke.
func Joke(ctx context.Context, robo *Robot, call *Invocation) error {
	if robo.Jokes == nil {
		return Warning("Jokes are not available right now.")
	}
	j, err := robo.Jokes.Take(ctx)
	if err != nil {
		return err
	}
	return call.Channel.Say(ctx, j.String())
}
