package command_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/zephyrtronium/dizzy/command"
)

func TestEightBall(t *testing.T) {
	robo := testRobot(&fakeChat{})
	sent, err := invoke(t, robo, command.EightBall, testMessage(guild), map[string]string{"question": "what"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"🎱 You need to provide an actual question..."}, sent); diff != "" {
		t.Errorf("wrong reply to non-question (-want +got):\n%s", diff)
	}
	sent, err = invoke(t, robo, command.EightBall, testMessage(guild), map[string]string{"question": "will it work"})
	if err != nil {
		t.Fatal(err)
	}
	if len(sent) != 1 || !strings.HasPrefix(sent[0], "🎱 ") || strings.Contains(sent[0], "actual question") {
		t.Errorf("wrong reply to question: %q", sent)
	}
}

func TestChoose(t *testing.T) {
	robo := testRobot(&fakeChat{})
	_, err := invoke(t, robo, command.Choose, testMessage(guild), map[string]string{"choices": "alone"})
	if !isWarning(err) {
		t.Errorf("expected warning for one choice, got %v", err)
	}
	sent, err := invoke(t, robo, command.Choose, testMessage(guild), map[string]string{"choices": `"left side" right`})
	if err != nil {
		t.Fatal(err)
	}
	if len(sent) != 1 || (sent[0] != "I choose: left side" && sent[0] != "I choose: right") {
		t.Errorf("wrong choice: %q", sent)
	}
}

func TestCoin(t *testing.T) {
	robo := testRobot(&fakeChat{})
	cases := []struct {
		name string
		n    string
		pre  string
		warn bool
	}{
		{"one", "", "I flipped a coin and got ", false},
		{"many", "5", "I flipped 5 coins and got: ", false},
		{"zero", "0", "", true},
		{"too many", "51", "", true},
		{"garbage", "x", "", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			sent, err := invoke(t, robo, command.Coin, testMessage(guild), map[string]string{"n": c.n})
			if c.warn {
				if !isWarning(err) {
					t.Errorf("expected warning, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(sent) != 1 || !strings.HasPrefix(sent[0], c.pre) {
				t.Errorf("wrong flip: %q", sent)
			}
		})
	}
}

func TestRate(t *testing.T) {
	chat := &fakeChat{members: map[string]string{target: "x"}}
	robo := testRobot(chat)
	cases := []struct {
		name  string
		thing string
		want  string
	}{
		{"thing", "x", "I would rate `x` a 4.0/10"},
		{"mention", "<@" + target + ">", "I would rate `x` a 4.0/10"},
		{"self", "dizzy", "I would rate myself a 10/10, of course."},
		{"me", "me", "I would rate you a 5.5/10"},
		{"own name", "ab", "I would rate you a 5.5/10"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			msg := testMessage(guild)
			msg.Name = "ab"
			sent, err := invoke(t, robo, command.Rate, msg, map[string]string{"thing": c.thing})
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff([]string{c.want}, sent); diff != "" {
				t.Errorf("wrong rating (-want +got):\n%s", diff)
			}
		})
	}
}

func TestShip(t *testing.T) {
	chat := &fakeChat{members: map[string]string{target: "b"}}
	robo := testRobot(chat)
	sent, err := invoke(t, robo, command.Ship, testMessage(guild), map[string]string{"args": "a <@!" + target + ">"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"I would rate the ship between `a` and `b` a 5.5/10"}
	if diff := cmp.Diff(want, sent); diff != "" {
		t.Errorf("wrong ship (-want +got):\n%s", diff)
	}
}

func TestShipQuoted(t *testing.T) {
	robo := testRobot(&fakeChat{})
	sent, err := invoke(t, robo, command.Ship, testMessage(guild), map[string]string{"args": `"a" b`})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"I would rate the ship between `a` and `b` a 5.5/10"}
	if diff := cmp.Diff(want, sent); diff != "" {
		t.Errorf("wrong ship (-want +got):\n%s", diff)
	}
	if _, err := invoke(t, robo, command.Ship, testMessage(guild), map[string]string{"args": "alone"}); !isWarning(err) {
		t.Errorf("expected warning for one thing, got %v", err)
	}
}

func TestSay(t *testing.T) {
	chat := &fakeChat{}
	robo := testRobot(chat)
	msg := testMessage(guild)
	sent, err := invoke(t, robo, command.Say, msg, map[string]string{"msg": " hello "})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"hello"}, sent); diff != "" {
		t.Errorf("wrong message (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"delete " + chanID + " " + msg.ID}, chat.Calls()); diff != "" {
		t.Errorf("wrong chat calls (-want +got):\n%s", diff)
	}
}
