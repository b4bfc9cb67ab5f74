package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"tradeline/internal/telephony"

	"github.com/spf13/cobra"
)

func newSignCmd() *cobra.Command {
	var (
		target string
		token  string
		params []string
	)

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Compute the X-Twilio-Signature for a webhook replay",
		Long: "Prints the signature the provider would send for the given URL and form parameters.\n" +
			"Repeat --param for each field; a key given twice keeps both values in order.",
		Example: "  tlctl sign --url https://hooks.example.com/webhooks/twilio/voice-status \\\n" +
			"    --token $TWILIO_AUTH_TOKEN --param CallSid=CA1 --param CallStatus=completed",
		RunE: func(cmd *cobra.Command, args []string) error {
			form, err := parseParams(params)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), telephony.ComputeSignatureValues(target, form, token))
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "url", "", "full public URL the webhook is delivered to")
	cmd.Flags().StringVar(&token, "token", "", "account auth token")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "form parameter as KEY=VALUE")
	_ = cmd.MarkFlagRequired("url")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func parseParams(raw []string) (url.Values, error) {
	form := url.Values{}
	for _, p := range raw {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --param %q: %w", p, errors.New("want KEY=VALUE"))
		}
		form.Add(k, v)
	}
	return form, nil
}
