// Command-line client for the session relay.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/solstice-os/relay/clients/go/relayclient"
	"github.com/solstice-os/relay/protocol"
)

func main() {
	var server string

	root := &cobra.Command{
		Use:   "relayctl",
		Short: "Talk to a session relay from the terminal",
	}
	root.PersistentFlags().StringVar(&server, "server", "http://localhost:8765", "relay base URL")

	root.AddCommand(
		healthCmd(&server),
		statsCmd(&server),
		rollCmd(&server),
		chatCmd(&server),
		watchCmd(&server),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func wsURL(server string) string {
	url := strings.Replace(server, "https://", "wss://", 1)
	url = strings.Replace(url, "http://", "ws://", 1)
	return strings.TrimSuffix(url, "/") + "/ws"
}

func getJSON(server, path string) error {
	resp, err := http.Get(strings.TrimSuffix(server, "/") + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var pretty any
	if err := json.Unmarshal(body, &pretty); err != nil {
		return fmt.Errorf("bad response: %w", err)
	}
	out, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Println(string(out))
	return nil
}

func healthCmd(server *string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show relay health and the connected roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON(*server, "/health")
		},
	}
}

func statsCmd(server *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show relay counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON(*server, "/stats")
		},
	}
}

// connect dials the relay and waits for the assigned session id.
func connect(server string) (*relayclient.Client, error) {
	c := relayclient.New(wsURL(server))

	connected := make(chan struct{}, 1)
	c.On(protocol.KindConnected, func(protocol.Envelope) {
		select {
		case connected <- struct{}{}:
		default:
		}
	})

	if err := c.Connect(); err != nil {
		return nil, err
	}
	select {
	case <-connected:
		return c, nil
	case <-time.After(10 * time.Second):
		c.Disconnect()
		return nil, fmt.Errorf("timed out waiting for relay greeting")
	}
}

func rollCmd(server *string) *cobra.Command {
	var sides, count int
	var name string

	cmd := &cobra.Command{
		Use:   "roll",
		Short: "Roll dice at the table",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(*server)
			if err != nil {
				return err
			}
			defer c.Disconnect()

			if name != "" {
				if err := c.SetCharacter(protocol.CharacterSummary{Name: name}); err != nil {
					return err
				}
			}

			// Dice rolls echo back to the roller for confirmation.
			echo := make(chan protocol.Envelope, 1)
			c.On(protocol.KindDiceRoll, func(env protocol.Envelope) {
				select {
				case echo <- env:
				default:
				}
			})

			if err := c.Roll(map[string]int{"sides": sides, "count": count}); err != nil {
				return err
			}

			select {
			case env := <-echo:
				fmt.Printf("rolled %dd%d (confirmed by relay, client %s)\n", count, sides, env.ClientID)
			case <-time.After(5 * time.Second):
				return fmt.Errorf("no roll confirmation from relay")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&sides, "sides", 20, "die size")
	cmd.Flags().IntVar(&count, "count", 1, "number of dice")
	cmd.Flags().StringVar(&name, "name", "", "character name to announce")
	return cmd
}

func chatCmd(server *string) *cobra.Command {
	var to string
	var toDM bool

	cmd := &cobra.Command{
		Use:   "chat <text>",
		Short: "Send a chat message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(*server)
			if err != nil {
				return err
			}
			defer c.Disconnect()

			payload := map[string]string{"text": args[0]}
			switch {
			case toDM:
				err = c.ChatDM(payload)
			case to != "":
				err = c.ChatTo(to, payload)
			default:
				err = c.Chat(payload)
			}
			if err != nil {
				return err
			}
			// Give the write a moment to flush before closing.
			time.Sleep(200 * time.Millisecond)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "deliver to one client id")
	cmd.Flags().BoolVar(&toDM, "dm", false, "deliver to DM sessions only")
	return cmd
}

func watchCmd(server *string) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print session events until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(*server)
			if err != nil {
				return err
			}
			defer c.Disconnect()

			kinds := []protocol.Kind{
				protocol.KindUserJoined, protocol.KindUserLeft,
				protocol.KindUserUpdated, protocol.KindDiceRoll,
				protocol.KindMessage, protocol.KindCombatUpdate,
				protocol.KindEncounter, protocol.KindInitiative,
				protocol.KindSharedNote, protocol.KindXPAnnouncement,
			}
			print := func(env protocol.Envelope) {
				fmt.Printf("[%s] %s from=%s %s\n",
					env.Timestamp, env.Kind, env.ClientID, string(env.Payload))
			}
			for _, k := range kinds {
				c.On(k, print)
			}

			fmt.Printf("watching as %s, ctrl-c to quit\n", c.SessionID())

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit
			return nil
		},
	}
}
