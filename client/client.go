// Package client is a small terminal client for the chat server: it
// logs in, renders the caller's rooms as a table, then follows every
// room live over the stream protocol.
package client

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/olekukonko/tablewriter"

	"gigchat/ws"
)

type Config struct {
	ServerURL string
	Email     string
	Password  string
}

type roomListing struct {
	Rooms []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		LatestSeq   uint64 `json:"latestSeq"`
		LastMessage string `json:"lastMessage"`
		UnreadCount uint64 `json:"unreadCount"`
	} `json:"rooms"`
}

// Run drives the whole session; it blocks until the stream drops.
func Run(cfg Config) error {
	token, err := login(cfg)
	if err != nil {
		return err
	}

	listing, err := fetchRooms(cfg.ServerURL, token)
	if err != nil {
		return err
	}
	renderRooms(listing)

	return follow(cfg.ServerURL, token, listing)
}

func login(cfg Config) (string, error) {
	body, _ := json.Marshal(map[string]string{"email": cfg.Email, "password": cfg.Password})
	resp, err := http.Post(cfg.ServerURL+"/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login refused with status %d", resp.StatusCode)
	}
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	return payload.Token, nil
}

func fetchRooms(serverURL, token string) (roomListing, error) {
	req, err := http.NewRequest(http.MethodGet, serverURL+"/rooms", nil)
	if err != nil {
		return roomListing{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return roomListing{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return roomListing{}, fmt.Errorf("room listing refused with status %d", resp.StatusCode)
	}
	var listing roomListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return roomListing{}, err
	}
	return listing, nil
}

func renderRooms(listing roomListing) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Room", "Name", "Latest seq", "Unread", "Last message"})
	for _, room := range listing.Rooms {
		table.Append([]string{
			room.ID,
			room.Name,
			fmt.Sprintf("%d", room.LatestSeq),
			fmt.Sprintf("%d", room.UnreadCount),
			room.LastMessage,
		})
	}
	table.Render()
}

// follow subscribes to every room from sequence 0 and prints backfill
// and live traffic until the connection drops.
func follow(serverURL, token string, listing roomListing) error {
	target, err := url.Parse(serverURL)
	if err != nil {
		return err
	}
	target.Scheme = "ws"
	target.Path = "/ws"
	target.RawQuery = url.Values{"token": {token}}.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(target.String(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	for _, room := range listing.Rooms {
		frame := ws.ClientFrame{Type: ws.FrameSubscribe, RoomID: room.ID}
		if err := conn.WriteJSON(frame); err != nil {
			return err
		}
	}

	for {
		var frame ws.ServerFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return err
		}
		printFrame(frame)
	}
}

func printFrame(frame ws.ServerFrame) {
	switch frame.Type {
	case ws.FrameBackfill:
		for _, msg := range frame.Messages {
			printMessage(msg, color.Gray)
		}
	case ws.FrameLive:
		if frame.Message != nil {
			printMessage(*frame.Message, color.Green)
		}
	case ws.FrameError:
		color.Red.Printf("[%s] %s\n", frame.Kind, frame.Detail)
	}
}

func printMessage(msg ws.MessagePayload, c color.Color) {
	c.Printf("%s #%d %s: %s\n",
		msg.At.Format(time.TimeOnly),
		msg.Sequence,
		msg.SenderID,
		msg.Content.Summary())
}
