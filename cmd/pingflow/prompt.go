package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/pingidentity/ping-go/collector"
)

var errNoAction = errors.New("form has no action to submit")

// prompter asks the user for collector values on a terminal
type prompter struct {
	in  *bufio.Reader
	out io.Writer
	// secret reads a line without echo when stdin is a terminal
	secret func() (string, error)
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	p := &prompter{in: bufio.NewReader(in), out: out}
	p.secret = p.line
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.secret = func() (string, error) {
			b, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(p.out)
			return string(b), err
		}
	}
	return p
}

func (p *prompter) line() (string, error) {
	s, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || s == "") {
		return "", err
	}
	return strings.TrimRight(s, "\r\n"), nil
}

func (p *prompter) ask(label, current string) (string, error) {
	if current != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", labelStyle.Render(label), current)
	} else {
		fmt.Fprintf(p.out, "%s: ", labelStyle.Render(label))
	}
	s, err := p.line()
	if err != nil {
		return "", err
	}
	if s == "" {
		return current, nil
	}
	return s, nil
}

// choose lists labels and returns the selected index
func (p *prompter) choose(label string, labels []string, def int) (int, error) {
	fmt.Fprintln(p.out, labelStyle.Render(label))
	for i, l := range labels {
		fmt.Fprintln(p.out, optionStyle.Render(fmt.Sprintf("%d) %s", i+1, l)))
	}
	for {
		current := ""
		if def >= 0 {
			current = strconv.Itoa(def + 1)
		}
		s, err := p.ask("Choice", current)
		if err != nil {
			return -1, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err == nil && n >= 1 && n <= len(labels) {
			return n - 1, nil
		}
		fmt.Fprintln(p.out, warningStyle.Render("Enter a number between 1 and "+strconv.Itoa(len(labels))))
	}
}

// fill prompts for every collector of a form and selects the action to
// submit. It repeats until the collectors pass local validation.
func (p *prompter) fill(cs collector.Collectors) error {
	for {
		if err := p.fields(cs); err != nil {
			return err
		}
		errs := cs.Validate()
		if len(errs) == 0 {
			break
		}
		for _, c := range cs {
			for _, e := range errs[c.Key()] {
				fmt.Fprintln(p.out, errorStyle.Render(e.Message))
			}
		}
	}
	return p.action(cs)
}

func (p *prompter) fields(cs collector.Collectors) error {
	var err error
	for _, c := range cs {
		switch c := c.(type) {
		case *collector.LabelCollector:
			fmt.Fprintln(p.out, c.Content)
		case *collector.TextCollector:
			c.Value, err = p.ask(c.Label, c.Value)
		case *collector.PasswordCollector:
			fmt.Fprintf(p.out, "%s: ", labelStyle.Render(c.Label))
			c.Value, err = p.secret()
		case *collector.SingleSelectCollector:
			err = p.single(c)
		case *collector.MultiSelectCollector:
			err = p.multi(c)
		case *collector.PhoneNumberCollector:
			if c.CountryCode, err = p.ask(c.Label+" country code", c.CountryCode); err == nil {
				c.PhoneNumber, err = p.ask(c.Label, c.PhoneNumber)
			}
		case *collector.DeviceRegistrationCollector:
			var i int
			if i, err = p.device(c.Label, c.Devices); err == nil {
				c.Value = &c.Devices[i]
			}
		case *collector.DeviceAuthenticationCollector:
			var i int
			if i, err = p.device(c.Label, c.Devices); err == nil {
				c.Value = &c.Devices[i]
			}
		case collector.Submittable:
		default:
			fmt.Fprintln(p.out, warningStyle.Render(fmt.Sprintf("%s (%s) is not supported on a terminal", c.Key(), c.Type())))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *prompter) single(c *collector.SingleSelectCollector) error {
	labels := make([]string, len(c.Options))
	def := -1
	for i, o := range c.Options {
		labels[i] = o.Label
		if o.Value == c.Value {
			def = i
		}
	}
	i, err := p.choose(c.Label, labels, def)
	if err != nil {
		return err
	}
	c.Value = c.Options[i].Value
	return nil
}

func (p *prompter) multi(c *collector.MultiSelectCollector) error {
	fmt.Fprintln(p.out, labelStyle.Render(c.Label))
	for i, o := range c.Options {
		fmt.Fprintln(p.out, optionStyle.Render(fmt.Sprintf("%d) %s", i+1, o.Label)))
	}
	s, err := p.ask("Choices (comma separated)", "")
	if err != nil {
		return err
	}
	c.Value = nil
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 1 || n > len(c.Options) {
			continue
		}
		c.Value = append(c.Value, c.Options[n-1].Value)
	}
	return nil
}

func (p *prompter) device(label string, devices []collector.Device) (int, error) {
	if len(devices) == 0 {
		return -1, fmt.Errorf("%s offers no devices", label)
	}
	labels := make([]string, len(devices))
	def := -1
	for i, d := range devices {
		labels[i] = d.Title
		if d.Description != "" {
			labels[i] += " - " + d.Description
		}
		if d.Default {
			def = i
		}
	}
	return p.choose(label, labels, def)
}

// action sets the value of the selected submit button or flow link. A
// single action is selected without asking.
func (p *prompter) action(cs collector.Collectors) error {
	var actions []collector.Submittable
	for _, c := range cs {
		if s, ok := c.(collector.Submittable); ok {
			actions = append(actions, s)
		}
	}

	var selected collector.Submittable
	switch len(actions) {
	case 0:
		return errNoAction
	case 1:
		selected = actions[0]
	default:
		labels := make([]string, len(actions))
		for i, a := range actions {
			labels[i] = labelOf(a)
		}
		i, err := p.choose("Continue with", labels, 0)
		if err != nil {
			return err
		}
		selected = actions[i]
	}

	for _, a := range actions {
		setAction(a, "")
	}
	setAction(selected, selected.Key())
	return nil
}

func labelOf(c collector.Collector) string {
	switch c := c.(type) {
	case *collector.SubmitCollector:
		return c.Label
	case *collector.FlowCollector:
		return c.Label
	}
	return c.Key()
}

func setAction(c collector.Collector, value string) {
	switch c := c.(type) {
	case *collector.SubmitCollector:
		c.Value = value
	case *collector.FlowCollector:
		c.Value = value
	}
}
