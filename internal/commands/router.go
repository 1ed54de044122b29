package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/Hongsc0125/donggle-bot/internal/logger"
)

var ErrUnknownInteraction = errors.New("unknown interaction")

// HandlerFunc handles one interaction.
type HandlerFunc func(ctx context.Context, i *discordgo.InteractionCreate) error

// Router dispatches slash commands by name, and buttons and modals by the
// prefix of their custom ID ("recruit:join:<id>" goes to "recruit").
type Router struct {
	mu         sync.RWMutex
	commands   map[string]HandlerFunc
	components map[string]HandlerFunc
	modals     map[string]HandlerFunc
	logger     *logger.Logger
}

func NewRouter(log *logger.Logger) *Router {
	return &Router{
		commands:   make(map[string]HandlerFunc),
		components: make(map[string]HandlerFunc),
		modals:     make(map[string]HandlerFunc),
		logger:     log.Component("commands"),
	}
}

func (r *Router) Command(name string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[name] = h
}

func (r *Router) Component(prefix string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components[prefix] = h
}

func (r *Router) Modal(prefix string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modals[prefix] = h
}

// Missing returns catalog commands without a handler.
func (r *Router) Missing(c *Catalog) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var missing []string
	for _, name := range c.Names() {
		if _, ok := r.commands[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Handle routes an interaction to its handler.
func (r *Router) Handle(ctx context.Context, i *discordgo.InteractionCreate) error {
	kind, key := routeKey(i)

	r.mu.RLock()
	var h HandlerFunc
	switch kind {
	case discordgo.InteractionApplicationCommand:
		h = r.commands[key]
	case discordgo.InteractionMessageComponent:
		h = r.components[key]
	case discordgo.InteractionModalSubmit:
		h = r.modals[key]
	}
	r.mu.RUnlock()

	if h == nil {
		r.logger.WarnCtx(ctx, "unknown interaction",
			logger.Field{Key: "type", Value: kind.String()},
			logger.Field{Key: "key", Value: key})
		return fmt.Errorf("%w: %s %q", ErrUnknownInteraction, kind, key)
	}
	return h(ctx, i)
}

func routeKey(i *discordgo.InteractionCreate) (discordgo.InteractionType, string) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		return i.Type, i.ApplicationCommandData().Name
	case discordgo.InteractionMessageComponent:
		return i.Type, prefix(i.MessageComponentData().CustomID)
	case discordgo.InteractionModalSubmit:
		return i.Type, prefix(i.ModalSubmitData().CustomID)
	default:
		return i.Type, ""
	}
}

func prefix(customID string) string {
	p, _, _ := strings.Cut(customID, ":")
	return p
}

// CustomID builds a component ID: CustomID("recruit", "join", id).
func CustomID(parts ...string) string {
	return strings.Join(parts, ":")
}

// ParseCustomID splits a component ID into its parts.
func ParseCustomID(id string) []string {
	return strings.Split(id, ":")
}

// Options flattens the options of a command or of its subcommand, returning
// the subcommand name when there is one.
func Options(data discordgo.ApplicationCommandInteractionData) (sub string, opts map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	list := data.Options
	if len(list) == 1 && list[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		sub = list[0].Name
		list = list[0].Options
	}
	opts = make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(list))
	for _, o := range list {
		opts[o.Name] = o
	}
	return sub, opts
}
