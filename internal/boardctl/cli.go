// Package boardctl implements the dev CLI for poking a running bridge
// over MQTT: send messages, manage save slots, and exercise timers.
package boardctl

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jfryman/vestaboard-mqtt/pkg/types"
)

// Config carries broker connection settings shared by all commands.
type Config struct {
	BrokerHost string
	BrokerPort int
	Username   string
	Password   string
	Prefix     string
}

// Run parses arguments and executes the command tree.
func Run(args []string) int {
	cfg := &Config{BrokerHost: "localhost", BrokerPort: 1883, Prefix: "vestaboard"}
	root := buildRootCmd(cfg)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func buildRootCmd(cfg *Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "boardctl",
		Short:         "Send test messages to a running vestaboard-mqtt bridge",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfg.BrokerHost, "host", cfg.BrokerHost, "MQTT broker host (defaults MQTT_BROKER_HOST or localhost)")
	root.PersistentFlags().IntVar(&cfg.BrokerPort, "port", cfg.BrokerPort, "MQTT broker port")
	root.PersistentFlags().StringVar(&cfg.Username, "username", "", "MQTT username")
	root.PersistentFlags().StringVar(&cfg.Password, "password", "", "MQTT password")
	root.PersistentFlags().StringVar(&cfg.Prefix, "prefix", cfg.Prefix, "Topic prefix the bridge listens under")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if v := os.Getenv("MQTT_BROKER_HOST"); v != "" && !cmd.InheritedFlags().Changed("host") {
			cfg.BrokerHost = v
		}
	}

	msgCmd := &cobra.Command{
		Use:     "message <text>",
		Short:   "Display a message on the board",
		Example: "  boardctl message \"HELLO WORLD\"",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(c mqtt.Client) error {
				return publish(c, cfg.Prefix+"/message", []byte(args[0]))
			})
		},
	}

	saveCmd := &cobra.Command{
		Use:   "save <slot>",
		Short: "Save the current board state to a slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(c mqtt.Client) error {
				return publish(c, cfg.Prefix+"/save/"+args[0], nil)
			})
		},
	}

	restoreCmd := &cobra.Command{
		Use:   "restore <slot>",
		Short: "Restore a saved board state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(c mqtt.Client) error {
				return publish(c, cfg.Prefix+"/restore/"+args[0], nil)
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <slot>",
		Short: "Delete a saved board state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(c mqtt.Client) error {
				return publish(c, cfg.Prefix+"/delete/"+args[0], nil)
			})
		},
	}

	var restoreSlot string
	timedCmd := &cobra.Command{
		Use:     "timed <text> <seconds>",
		Short:   "Schedule a timed message with auto-restore",
		Example: "  boardctl timed \"BACK IN 5\" 300 --restore-slot backup",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			secs, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid duration %q: %w", args[1], err)
			}
			responseTopic := cfg.Prefix + "/timer-response"
			msg, _ := json.Marshal(args[0])
			payload, err := json.Marshal(types.TimedMessageRequest{
				Message:         msg,
				DurationSeconds: secs,
				RestoreSlot:     restoreSlot,
				ResponseTopic:   responseTopic,
			})
			if err != nil {
				return err
			}
			return withClient(cfg, func(c mqtt.Client) error {
				if err := publishAndPrint(c, responseTopic, cfg.Prefix+"/timed-message", payload); err != nil {
					return err
				}
				return nil
			})
		},
	}
	timedCmd.Flags().StringVar(&restoreSlot, "restore-slot", "", "Slot to restore from on expiry (default: snapshot current state)")

	cancelCmd := &cobra.Command{
		Use:   "cancel <timer-id>",
		Short: "Cancel a scheduled timer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(c mqtt.Client) error {
				return publish(c, cfg.Prefix+"/cancel-timer/"+args[0], nil)
			})
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List active timers",
		RunE: func(cmd *cobra.Command, args []string) error {
			responseTopic := cfg.Prefix + "/timers-response"
			return withClient(cfg, func(c mqtt.Client) error {
				return publishAndPrint(c, responseTopic, cfg.Prefix+"/list-timers", nil)
			})
		},
	}

	root.AddCommand(msgCmd, saveCmd, restoreCmd, deleteCmd, timedCmd, cancelCmd, listCmd)
	return root
}

func withClient(cfg *Config, fn func(mqtt.Client) error) error {
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.BrokerHost, cfg.BrokerPort)).
		SetClientID("boardctl-" + uuid.NewString()[:8])
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		if err := token.Error(); err != nil {
			return fmt.Errorf("connecting to broker: %w", err)
		}
		return fmt.Errorf("connecting to broker: timed out")
	}
	defer client.Disconnect(250)
	return fn(client)
}

func publish(c mqtt.Client, topic string, payload []byte) error {
	token := c.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		return fmt.Errorf("publishing to %s: %v", topic, token.Error())
	}
	fmt.Printf("published to %s\n", topic)
	return nil
}

// publishAndPrint subscribes to responseTopic, publishes the request, and
// prints the first response (or times out quietly).
func publishAndPrint(c mqtt.Client, responseTopic, topic string, payload []byte) error {
	ch := make(chan []byte, 1)
	token := c.Subscribe(responseTopic, 1, func(_ mqtt.Client, m mqtt.Message) {
		select {
		case ch <- m.Payload():
		default:
		}
	})
	if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		return fmt.Errorf("subscribing to %s: %v", responseTopic, token.Error())
	}
	defer c.Unsubscribe(responseTopic)

	if err := publish(c, topic, payload); err != nil {
		return err
	}

	select {
	case resp := <-ch:
		var pretty map[string]any
		if err := json.Unmarshal(resp, &pretty); err == nil {
			out, _ := json.MarshalIndent(pretty, "", "  ")
			fmt.Println(string(out))
		} else {
			fmt.Println(string(resp))
		}
	case <-time.After(5 * time.Second):
		fmt.Println("no response received")
	}
	return nil
}
