package gateway

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
)

// DiscordConn adapts a discordgo session to Conn.
type DiscordConn struct {
	session *discordgo.Session
}

// NewDiscordConn wraps session and turns off discordgo's own reconnect loop,
// leaving the Monitor as the only reconnect path.
func NewDiscordConn(session *discordgo.Session) *DiscordConn {
	session.ShouldReconnectOnError = false
	return &DiscordConn{session: session}
}

// Session returns the wrapped session.
func (c *DiscordConn) Session() *discordgo.Session {
	return c.session
}

func (c *DiscordConn) Open() error {
	if err := c.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	return nil
}

func (c *DiscordConn) Close() error {
	if err := c.session.Close(); err != nil {
		return fmt.Errorf("failed to close discord session: %w", err)
	}
	return nil
}

// Closed reports whether the session has no ready websocket.
func (c *DiscordConn) Closed() bool {
	c.session.RLock()
	defer c.session.RUnlock()
	return !c.session.DataReady
}

func (c *DiscordConn) LastHeartbeatAck() time.Time {
	c.session.RLock()
	defer c.session.RUnlock()
	return c.session.LastHeartbeatAck
}

func (c *DiscordConn) Latency() time.Duration {
	return c.session.HeartbeatLatency()
}

// BindLifecycle routes the session's connect, disconnect and resume events to
// the monitor. The returned function removes the handlers.
func BindLifecycle(session *discordgo.Session, m *Monitor) func() {
	removers := []func(){
		session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Connect) {
			m.OnConnect()
		}),
		session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
			m.OnDisconnect()
		}),
		session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Resumed) {
			m.OnResume()
		}),
	}
	return func() {
		for _, remove := range removers {
			remove()
		}
	}
}
