// Package bot is the Discord transport: it splits chat messages into
// command + argument text and hands them to the economy engine. Game rules
// live entirely behind that boundary.
package bot

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"barkeep/internal/config"
	"barkeep/internal/economy"
)

type Bot struct {
	cfg     config.Config
	log     *slog.Logger
	engine  *economy.Engine
	session *discordgo.Session
}

func New(cfg config.Config, logger *slog.Logger, engine *economy.Engine) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentMessageContent

	b := &Bot{cfg: cfg, log: logger, engine: engine, session: session}
	session.AddHandler(b.onMessageCreate)
	session.AddHandler(b.onGuildMemberAdd)
	session.AddHandler(b.onGuildMemberUpdate)
	return b, nil
}

func (b *Bot) Open() error  { return b.session.Open() }
func (b *Bot) Close() error { return b.session.Close() }

func (b *Bot) onGuildMemberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.User == nil || m.User.Bot {
		return
	}
	if line, ok := b.engine.MaybeGreet(m.User.Username); ok {
		b.post(s, guildDefaultChannel(s, m.GuildID), line)
	}
}

// onGuildMemberUpdate records nickname changes as aliases so entity
// resolution keeps finding people after they rename.
func (b *Bot) onGuildMemberUpdate(_ *discordgo.Session, m *discordgo.GuildMemberUpdate) {
	if m.User == nil || m.User.Bot || m.Nick == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	actor, err := b.engine.EnsureActor(ctx, m.User.Username, m.User.ID)
	if err != nil {
		b.log.Error("ensure actor failed", "user", m.User.Username, "err", err)
		return
	}
	if err := b.engine.RecordAlias(ctx, actor, m.Nick); err != nil {
		b.log.Error("record alias failed", "actor", actor.Name, "nick", m.Nick, "err", err)
	}
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	command, args, ok := b.parse(m.Content)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	actor, err := b.engine.EnsureActor(ctx, m.Author.Username, m.Author.ID)
	if err != nil {
		b.log.Error("ensure actor failed", "user", m.Author.Username, "err", err)
		return
	}

	reply, err := b.dispatch(ctx, actor, command, args)
	if err != nil {
		b.log.Error("command failed", "command", command, "actor", actor.Name, "err", err)
		b.post(s, m.ChannelID, "stares into the middle distance. Something went wrong back there.")
		return
	}
	if reply == "" {
		return
	}
	if actor.Drunk() {
		reply = b.engine.Narrator().Garble(reply)
	}
	b.post(s, m.ChannelID, reply)
}

// parse splits "!give lamp to bob" into ("give", "lamp to bob"). Returns
// ok=false for anything that isn't a prefixed command.
func (b *Bot) parse(content string) (string, string, bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, b.cfg.CommandPrefix) {
		return "", "", false
	}
	content = strings.TrimPrefix(content, b.cfg.CommandPrefix)
	command, args, _ := strings.Cut(content, " ")
	command = strings.ToLower(strings.TrimSpace(command))
	if command == "" {
		return "", "", false
	}
	return command, strings.TrimSpace(args), true
}

func (b *Bot) dispatch(ctx context.Context, actor economy.Actor, command, args string) (string, error) {
	switch command {
	case "steal":
		res, err := b.engine.Steal(ctx, actor, args)
		return res.Message, err
	case "forge":
		res, err := b.engine.Forge(ctx, actor, args, b.cfg.IsOperator(actor.PlatformID))
		return res.Message, err
	case "brew":
		res, err := b.engine.Brew(ctx, actor, args)
		return res.Message, err
	case "drink":
		res, err := b.engine.Drink(ctx, actor, args)
		return res.Message, err
	case "give":
		itemText, recipientText, ok := splitGive(args)
		if !ok {
			return "tilts their head. Try `" + b.cfg.CommandPrefix + "give <thing> to <someone>`.", nil
		}
		res, err := b.engine.Give(ctx, actor, itemText, recipientText)
		return res.Message, err
	case "treasure":
		treasureText, recipientText, ok := splitGive(args)
		if !ok {
			return "tilts their head. Try `" + b.cfg.CommandPrefix + "treasure <name> to <someone>`.", nil
		}
		res, err := b.engine.GiveTreasure(ctx, actor, treasureText, recipientText)
		return res.Message, err
	case "play":
		res, err := b.engine.Play(ctx, actor)
		return res.Message, err
	case "inventory":
		return b.engine.Inventory(ctx, actor)
	case "score":
		return b.engine.ScoreReport(actor) + ".", nil
	case "help":
		return b.help(), nil
	default:
		return "", nil
	}
}

// splitGive separates "<thing> to <someone>" on the last " to ", so item
// names containing the word keep it.
func splitGive(args string) (string, string, bool) {
	padded := " " + args + " "
	idx := strings.LastIndex(padded, " to ")
	if idx < 0 {
		return "", "", false
	}
	thing := strings.TrimSpace(padded[:idx])
	who := strings.TrimSpace(padded[idx+4:])
	if thing == "" || who == "" {
		return "", "", false
	}
	return thing, who, true
}

func (b *Bot) help() string {
	p := b.cfg.CommandPrefix
	return strings.Join([]string{
		p + "steal <thing> tries to pocket someone's item.",
		p + "brew <name> brews you a beverage, " + p + "drink <name> drinks one.",
		p + "give <thing> to <someone> hands it over.",
		p + "treasure <name> to <someone> passes a treasure you hold.",
		p + "play rolls the dice, " + p + "inventory and " + p + "score show where you stand.",
	}, "\n")
}

func (b *Bot) post(s *discordgo.Session, channelID, text string) {
	if channelID == "" || text == "" {
		return
	}
	if _, err := s.ChannelMessageSend(channelID, "*"+b.cfg.BotName+" "+text+"*"); err != nil {
		b.log.Error("send reply failed", "channel", channelID, "err", err)
	}
}

func guildDefaultChannel(s *discordgo.Session, guildID string) string {
	guild, err := s.State.Guild(guildID)
	if err != nil || guild == nil {
		return ""
	}
	if guild.SystemChannelID != "" {
		return guild.SystemChannelID
	}
	for _, ch := range guild.Channels {
		if ch.Type == discordgo.ChannelTypeGuildText {
			return ch.ID
		}
	}
	return ""
}
