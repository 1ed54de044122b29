// Package commands holds the slash command catalog and routes interactions
// to their handlers.
package commands

import (
	_ "embed"
	"errors"
	"fmt"
	"regexp"

	"github.com/bwmarrin/discordgo"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

var (
	ErrInvalidCatalog = errors.New("invalid command catalog")
	namePattern       = regexp.MustCompile(`^[a-z0-9_-]{1,32}$`)
)

// Option is a command option or subcommand.
type Option struct {
	Name        string   `yaml:"name"`
	Type        string   `yaml:"type"`
	Description string   `yaml:"description"`
	Required    bool     `yaml:"required"`
	MinValue    *float64 `yaml:"min_value,omitempty"`
	MaxValue    *float64 `yaml:"max_value,omitempty"`
	Choices     []Choice `yaml:"choices,omitempty"`
	Options     []Option `yaml:"options,omitempty"` // только для subcommand
}

type Choice struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// Command is one slash command.
type Command struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions,omitempty"`
	Options     []Option `yaml:"options,omitempty"`
}

// Catalog is the parsed command list.
type Catalog struct {
	Commands []Command `yaml:"commands"`
}

var optionTypes = map[string]discordgo.ApplicationCommandOptionType{
	"subcommand": discordgo.ApplicationCommandOptionSubCommand,
	"string":     discordgo.ApplicationCommandOptionString,
	"integer":    discordgo.ApplicationCommandOptionInteger,
	"boolean":    discordgo.ApplicationCommandOptionBoolean,
	"user":       discordgo.ApplicationCommandOptionUser,
	"channel":    discordgo.ApplicationCommandOptionChannel,
	"role":       discordgo.ApplicationCommandOptionRole,
	"number":     discordgo.ApplicationCommandOptionNumber,
}

var permissionBits = map[string]int64{
	"manage_messages": discordgo.PermissionManageMessages,
	"manage_guild":    discordgo.PermissionManageGuild,
	"manage_channels": discordgo.PermissionManageChannels,
	"administrator":   discordgo.PermissionAdministrator,
}

// Load parses the embedded catalog.
func Load() (*Catalog, error) {
	return Parse(catalogYAML)
}

// Parse parses and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks names, descriptions, option types and permissions.
func (c *Catalog) Validate() error {
	if len(c.Commands) == 0 {
		return fmt.Errorf("%w: no commands", ErrInvalidCatalog)
	}

	seen := make(map[string]bool, len(c.Commands))
	for _, cmd := range c.Commands {
		if !namePattern.MatchString(cmd.Name) {
			return fmt.Errorf("%w: bad command name %q", ErrInvalidCatalog, cmd.Name)
		}
		if seen[cmd.Name] {
			return fmt.Errorf("%w: duplicate command %q", ErrInvalidCatalog, cmd.Name)
		}
		seen[cmd.Name] = true

		if cmd.Description == "" || len([]rune(cmd.Description)) > 100 {
			return fmt.Errorf("%w: command %q needs a description of 1-100 characters", ErrInvalidCatalog, cmd.Name)
		}
		for _, p := range cmd.Permissions {
			if _, ok := permissionBits[p]; !ok {
				return fmt.Errorf("%w: command %q has unknown permission %q", ErrInvalidCatalog, cmd.Name, p)
			}
		}
		if err := validateOptions(cmd.Name, cmd.Options, true); err != nil {
			return err
		}
	}
	return nil
}

func validateOptions(path string, opts []Option, allowSub bool) error {
	names := make(map[string]bool, len(opts))
	for _, o := range opts {
		where := path + "." + o.Name
		if !namePattern.MatchString(o.Name) {
			return fmt.Errorf("%w: bad option name %q", ErrInvalidCatalog, where)
		}
		if names[o.Name] {
			return fmt.Errorf("%w: duplicate option %q", ErrInvalidCatalog, where)
		}
		names[o.Name] = true

		if _, ok := optionTypes[o.Type]; !ok {
			return fmt.Errorf("%w: option %q has unknown type %q", ErrInvalidCatalog, where, o.Type)
		}
		if o.Description == "" {
			return fmt.Errorf("%w: option %q needs a description", ErrInvalidCatalog, where)
		}
		if o.Type == "subcommand" {
			if !allowSub {
				return fmt.Errorf("%w: nested subcommand %q", ErrInvalidCatalog, where)
			}
			if err := validateOptions(where, o.Options, false); err != nil {
				return err
			}
		} else if len(o.Options) > 0 {
			return fmt.Errorf("%w: option %q cannot have options", ErrInvalidCatalog, where)
		}
		if o.MinValue != nil && o.MaxValue != nil && *o.MinValue > *o.MaxValue {
			return fmt.Errorf("%w: option %q has min_value above max_value", ErrInvalidCatalog, where)
		}
	}
	return nil
}

// Names returns the command names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.Commands))
	for _, cmd := range c.Commands {
		names = append(names, cmd.Name)
	}
	return names
}

// ApplicationCommands converts the catalog for registration.
func (c *Catalog) ApplicationCommands() []*discordgo.ApplicationCommand {
	dmAllowed := false
	out := make([]*discordgo.ApplicationCommand, 0, len(c.Commands))
	for _, cmd := range c.Commands {
		ac := &discordgo.ApplicationCommand{
			Name:         cmd.Name,
			Description:  cmd.Description,
			Options:      convertOptions(cmd.Options),
			DMPermission: &dmAllowed,
		}
		if len(cmd.Permissions) > 0 {
			var perms int64
			for _, p := range cmd.Permissions {
				perms |= permissionBits[p]
			}
			ac.DefaultMemberPermissions = &perms
		}
		out = append(out, ac)
	}
	return out
}

func convertOptions(opts []Option) []*discordgo.ApplicationCommandOption {
	if len(opts) == 0 {
		return nil
	}
	out := make([]*discordgo.ApplicationCommandOption, 0, len(opts))
	for _, o := range opts {
		ao := &discordgo.ApplicationCommandOption{
			Type:        optionTypes[o.Type],
			Name:        o.Name,
			Description: o.Description,
			Required:    o.Required,
			MinValue:    o.MinValue,
			Options:     convertOptions(o.Options),
		}
		if o.MaxValue != nil {
			ao.MaxValue = *o.MaxValue
		}
		for _, ch := range o.Choices {
			ao.Choices = append(ao.Choices, &discordgo.ApplicationCommandOptionChoice{Name: ch.Name, Value: ch.Value})
		}
		out = append(out, ao)
	}
	return out
}
