package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/c-bata/go-prompt"

	"github.com/nerrad567/eclypse-bridge/internal/entry"
	"github.com/nerrad567/eclypse-bridge/internal/wizard"
)

// setup drives one wizard session from the terminal until it is done or
// failed.
type setup struct {
	ui       ui
	mgr      *wizard.Manager
	defaults wizard.Credentials
}

func (s *setup) run(ctx context.Context) (*entry.Entry, error) {
	v := s.mgr.Begin()
	id := v.ID
	defer s.mgr.Cancel(id)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var in wizard.Input
		switch v.State {
		case wizard.StateCollectingCredentials:
			creds, err := s.askCredentials()
			if err != nil {
				return nil, err
			}
			s.ui.Printf("Connecting to %s...\n", creds.Host)
			in.Credentials = creds
		case wizard.StateSelectingObjects:
			s.showDevice(v)
			in.Objects = s.askObjects(v.Objects)
		case wizard.StateSelectingProperties:
			in.Properties = s.askProperties(v.Offered)
		case wizard.StateDone:
			return v.Entry, nil
		case wizard.StateFailed:
			return nil, fmt.Errorf("setup failed: %s", v.Error)
		default:
			return nil, fmt.Errorf("unexpected wizard state %q", v.State)
		}

		next, err := s.mgr.Submit(ctx, id, in)
		switch {
		case err == nil:
		case errors.Is(err, wizard.ErrInvalidInput), errors.Is(err, wizard.ErrDiscoveryFailed):
			s.ui.Printf("  %v\n", err)
		case errors.Is(err, entry.ErrEntryExists):
			return nil, fmt.Errorf("an entry for %s is already stored: %w", s.defaults.Host, err)
		default:
			return nil, err
		}
		v = next
	}
}

func (s *setup) askCredentials() (wizard.Credentials, error) {
	c := wizard.Credentials{
		Host:     s.ui.Input("Controller host", s.defaults.Host, nil),
		Username: s.ui.Input("Username", s.defaults.Username, nil),
	}
	password, err := s.ui.Password("Password")
	if err != nil {
		return c, err
	}
	c.Password = password
	c.DeviceName = s.ui.Input("Device name", s.defaults.DeviceName, nil)

	// Keep answers as defaults for a retry.
	s.defaults.Host = c.Host
	s.defaults.Username = c.Username
	s.defaults.DeviceName = c.DeviceName
	return c, nil
}

func (s *setup) showDevice(v wizard.View) {
	if v.DeviceInfo == nil {
		return
	}
	s.ui.Printf("Found %s (%s, firmware %s) with %d objects.\n",
		v.DeviceInfo.ControllerName, v.DeviceInfo.ModelName, v.DeviceInfo.SoftwareVersion, len(v.Objects))
}

func (s *setup) askObjects(names []string) []string {
	for _, name := range names {
		s.ui.Printf("  %s\n", name)
	}
	answer := s.ui.Input("Objects to track (blank for all)", "", suggestions(names))
	return splitNames(answer)
}

func (s *setup) askProperties(offered map[string][]string) map[string][]string {
	chosen := make(map[string][]string, len(offered))
	for _, name := range slices.Sorted(maps.Keys(offered)) {
		props := offered[name]
		if len(props) == 0 {
			continue
		}
		label := fmt.Sprintf("%s properties [%s] (blank for all)", name, strings.Join(props, " "))
		if picked := splitNames(s.ui.Input(label, "", suggestions(props))); len(picked) > 0 {
			chosen[name] = picked
		}
	}
	return chosen
}

func suggestions(words []string) []prompt.Suggest {
	out := make([]prompt.Suggest, 0, len(words))
	for _, w := range words {
		out = append(out, prompt.Suggest{Text: w})
	}
	return out
}

// splitNames splits an answer on commas and whitespace.
func splitNames(answer string) []string {
	return strings.FieldsFunc(answer, func(r rune) bool {
		return strings.ContainsRune(wordSeparators+"\t", r)
	})
}
