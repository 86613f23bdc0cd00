package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/charleschow/deskcards/internal/config"
	"github.com/charleschow/deskcards/internal/core/cards"
	"github.com/charleschow/deskcards/internal/fanout"
)

var cardName string

var headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)

var cardsCmd = &cobra.Command{
	Use:   "cards",
	Short: "Manage the card stack",
	Long: `Edit the cards configured on the device. Changes take effect on the
device's next UI tick.`,
}

var cardsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured cards in stack order",
	Args:  cobra.NoArgs,
	RunE:  runCardsList,
}

var cardsTypesCmd = &cobra.Command{
	Use:   "types",
	Short: "List the card types the device supports",
	Args:  cobra.NoArgs,
	RunE:  runCardsTypes,
}

var cardsAddCmd = &cobra.Command{
	Use:   "add TYPE [CONFIG]",
	Short: "Append a card",
	Long: `Append a card to the end of the stack. CONFIG is the timezone city
for CLOCK, the city for WEATHER and the Last.fm user for NOW_PLAYING.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCardsAdd,
}

var cardsRemoveCmd = &cobra.Command{
	Use:   "remove ID",
	Short: "Remove a card",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := fanout.NewAPIClient(deviceAddr).RemoveCard(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
		return nil
	},
}

var cardsMoveCmd = &cobra.Command{
	Use:   "move ID INDEX",
	Short: "Move a card to a zero-based position",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid index %q: %w", args[1], err)
		}
		return fanout.NewAPIClient(deviceAddr).MoveCard(cmd.Context(), args[0], idx)
	},
}

var cardsSetCmd = &cobra.Command{
	Use:   "set ID CONFIG",
	Short: "Change a card's config value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return fanout.NewAPIClient(deviceAddr).UpdateCard(cmd.Context(), args[0], args[1], cardName)
	},
}

func init() {
	cardsAddCmd.Flags().StringVar(&cardName, "name", "", "Display name")
	cardsSetCmd.Flags().StringVar(&cardName, "name", "", "Display name (kept if empty)")

	cardsCmd.AddCommand(cardsListCmd)
	cardsCmd.AddCommand(cardsTypesCmd)
	cardsCmd.AddCommand(cardsAddCmd)
	cardsCmd.AddCommand(cardsRemoveCmd)
	cardsCmd.AddCommand(cardsMoveCmd)
	cardsCmd.AddCommand(cardsSetCmd)
}

func runCardsList(cmd *cobra.Command, args []string) error {
	list, err := fanout.NewAPIClient(deviceAddr).ListCards(cmd.Context())
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), list)
	}
	printCards(cmd.OutOrStdout(), list)
	return nil
}

func runCardsTypes(cmd *cobra.Command, args []string) error {
	defs, err := fanout.NewAPIClient(deviceAddr).Definitions(cmd.Context())
	if err != nil {
		// Offline device: fall back to the built-in catalogue.
		defs = cards.Definitions()
	}
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), defs)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-14s %-8s %-14s %s", "TYPE", "MULTI", "CONFIG", "DESCRIPTION")))
	for _, d := range defs {
		label := d.ConfigLabel
		if !d.NeedsConfig {
			label = "-"
		}
		fmt.Fprintf(w, "%-14s %-8t %-14s %s\n", d.Type, d.AllowMultiple, label, d.Description)
	}
	return nil
}

func runCardsAdd(cmd *cobra.Command, args []string) error {
	typ, err := config.ParseCardType(args[0])
	if err != nil {
		return err
	}
	var value string
	if len(args) > 1 {
		value = args[1]
	}
	added, err := fanout.NewAPIClient(deviceAddr).AddCard(cmd.Context(), string(typ), value, cardName)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), added)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "added %s %s at %d\n", added.Type, added.ID, added.Order)
	return nil
}

func printCards(w io.Writer, list []config.CardConfig) {
	if len(list) == 0 {
		fmt.Fprintln(w, "(no cards)")
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-3s %-36s %-14s %-16s %s", "#", "ID", "TYPE", "CONFIG", "NAME")))
	for _, c := range list {
		fmt.Fprintf(w, "%-3d %-36s %-14s %-16s %s\n", c.Order, c.ID, c.Type, c.Config, c.Name)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
