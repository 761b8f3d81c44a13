// Package signal implements the WebSocket signaling collaborator. It ferries
// offer/answer/candidate payloads between the backend and the receiver core,
// which it feeds through domain.SignalHandler.
package signal

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"camrelay/receiver/internal/domain"
)

const pingInterval = 30 * time.Second

// message is the backend's generic signaling envelope.
// Payload carries an SDP or ICE candidate JSON document as a string.
type message struct {
	Type    string `json:"type"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	Payload string `json:"payload,omitempty"`
}

// Client manages the WebSocket connection to the signaling server.
type Client struct {
	url      string
	cookie   string
	username string
	handler  domain.SignalHandler

	conn *websocket.Conn

	mu     sync.Mutex
	closed chan struct{}
}

// NewClient creates a signaling client. The session cookie comes from the
// external authentication flow and is passed through untouched.
func NewClient(url, cookie, username string, handler domain.SignalHandler) *Client {
	return &Client{
		url:      url,
		cookie:   cookie,
		username: username,
		handler:  handler,
		closed:   make(chan struct{}),
	}
}

// Connect dials the signaling WebSocket and starts the read loop.
func (c *Client) Connect() error {
	header := http.Header{}
	if c.cookie != "" {
		header.Set("Cookie", c.cookie)
	}

	log.Printf("[signal] connecting to %s", c.url)

	conn, _, err := websocket.DefaultDialer.Dial(c.url, header)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	c.conn = conn

	go c.readLoop()
	go c.pingLoop()

	return nil
}

// Close shuts down the WebSocket connection.
func (c *Client) Close() {
	select {
	case <-c.closed:
		return
	default:
		close(c.closed)
	}
	if c.conn != nil {
		c.conn.Close()
	}
}

func (c *Client) sendJSON(msg message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[signal] marshal error: %v", err)
		return
	}
	log.Printf("[signal] >>> type=%s to=%s", msg.Type, msg.To)
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("[signal] write error: %v", err)
	}
}

// sendPayload wraps a payload document in the signaling envelope.
func (c *Client) sendPayload(typ, to string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[signal] marshal %s payload: %v", typ, err)
		return
	}
	c.sendJSON(message{Type: typ, From: c.username, To: to, Payload: string(data)})
}

func (c *Client) readLoop() {
	defer c.Close()

	for {
		select {
		case <-c.closed:
			return
		default:
		}

		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
			default:
				log.Printf("[signal] read error: %v", err)
			}
			return
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("[signal] unmarshal error: %v", err)
			continue
		}

		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg message) {
	switch msg.Type {
	case "offer":
		var sdp domain.SDPPayload
		if err := json.Unmarshal([]byte(msg.Payload), &sdp); err != nil {
			log.Printf("[signal] unmarshal offer: %v", err)
			return
		}
		log.Printf("[signal] received offer from %s", msg.From)
		from := msg.From
		c.handler.ReceiveOffer(sdp, func(answer domain.SDPPayload) {
			c.sendPayload("answer", from, answer)
		})

	case "candidate":
		var candidate domain.ICECandidatePayload
		if err := json.Unmarshal([]byte(msg.Payload), &candidate); err != nil {
			log.Printf("[signal] unmarshal candidate: %v", err)
			return
		}
		c.handler.AddICECandidate(candidate)

	case "ping", "pong":
		// keepalive, no-op

	default:
		log.Printf("[signal] unhandled type: %s", msg.Type)
	}
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			c.mu.Lock()
			err := c.conn.WriteControl(
				websocket.PingMessage,
				[]byte{},
				time.Now().Add(5*time.Second),
			)
			c.mu.Unlock()
			if err != nil {
				select {
				case <-c.closed:
				default:
					log.Printf("[signal] ping error: %v", err)
				}
				return
			}
		}
	}
}
