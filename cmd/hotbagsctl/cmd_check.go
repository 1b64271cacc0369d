package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hotbags/backend/internal/usecase"
)

func init() {
	rootCmd.AddCommand(checkCmd, parseCmd)
	checkCmd.Flags().String("deal-id", "preview", "deal id shown in the CHECK message")
	checkCmd.Flags().Bool("json", false, "print the structured CHECK message")
	checkCmd.Flags().Bool("debug", false, "log extraction details")
}

var checkCmd = &cobra.Command{
	Use:   "check [text...]",
	Short: "Extract a draft from seller text and print its CHECK message",
	Long:  "Reads the seller message from the arguments, or from stdin when none are given.",
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := textInput(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}
		dealID, _ := cmd.Flags().GetString("deal-id")
		asJSON, _ := cmd.Flags().GetBool("json")
		debug, _ := cmd.Flags().GetBool("debug")

		draft := usecase.NewExtractor(debug).NewDraftFromSource(text, "", "")
		if err := draft.Validate(); err != nil {
			return err
		}
		check := usecase.BuildCheckMessage(dealID, 1, draft)
		if asJSON {
			return printJSON(cmd.OutOrStdout(), check)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), usecase.RenderCheckText(check))
		return err
	},
}

var parseCmd = &cobra.Command{
	Use:   "parse [reply...]",
	Short: "Parse an operator reply into a command",
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := textInput(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}
		command, err := usecase.ParseOperatorCommand(text)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), command)
	},
}
