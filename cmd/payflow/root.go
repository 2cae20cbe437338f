package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "payflow",
	Short: "Pay a room bill by bank transfer",
	Long: `payflow walks through one room bill payment against the payment gateway:
pick a bank, open a transaction, transfer the money, then confirm or cancel.

Interrupting the program while a transaction awaits confirmation cancels it.

Example Usage:
  payflow pay --room 6f1c2d3e-4a5b-4c6d-8e7f-9a0b1c2d3e4f --amount 150000 --bill-type RENT`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.AddCommand(newPayCmd())
}
