package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	ishell "github.com/abiosoft/ishell"
	"github.com/common-nighthawk/go-figure"
	"github.com/jghoshh/taskvibe/backend/engine"
	"github.com/jghoshh/taskvibe/backend/models"
	"github.com/jghoshh/taskvibe/frontend/client"
	"github.com/jghoshh/taskvibe/lib/utils"
)

// dailyStatsDays is how many days the stats command shows.
const dailyStatsDays = 7

// The Command struct defines a user command in the shell. Each command has a Name, a Desc (short for description), and a Func (the function to execute when the command is called).
type Command struct {
	Name string
	Desc string
	Func func(c *ishell.Context)
}

// Shell is the interactive TaskVibe shell. Tasks are addressed by their number in the
// last list or history output.
type Shell struct {
	shell *ishell.Shell
	api   *client.APIClient

	guestCommands  []Command
	userCommands   []Command
	commonCommands []Command

	loggedIn bool
	last     []models.Task
}

// NewShell builds the shell and its command sets on top of api.
func NewShell(api *client.APIClient) *Shell {
	s := &Shell{shell: ishell.New(), api: api}

	s.guestCommands = []Command{
		{Name: "login", Desc: "Sign in with the TaskVibe passphrase", Func: s.login},
	}

	s.userCommands = []Command{
		{Name: "add", Desc: "Add a task: add [immediate|medium|delayed]", Func: s.add},
		{Name: "list", Desc: "List active tasks in priority order", Func: s.list(false)},
		{Name: "history", Desc: "List completed tasks", Func: s.list(true)},
		{Name: "done", Desc: "Complete a task: done <n>", Func: s.setCompleted(true)},
		{Name: "undo", Desc: "Move a completed task back: undo <n>", Func: s.setCompleted(false)},
		{Name: "edit", Desc: "Edit a task: edit <n>", Func: s.edit},
		{Name: "rm", Desc: "Delete a task: rm <n>", Func: s.remove},
		{Name: "stats", Desc: "Show level, XP and recent activity", Func: s.stats},
		{Name: "achievements", Desc: "Show unlocked achievements", Func: s.achievements},
		{Name: "theme", Desc: "Set the theme: theme <light|dark|system>", Func: s.theme},
		{Name: "onboard", Desc: "Pick a nickname and theme", Func: s.onboard},
		{Name: "toasts", Desc: "Show new notifications", Func: s.toasts},
		{Name: "logout", Desc: "Sign out", Func: s.logout},
	}

	s.commonCommands = []Command{
		{
			Name: "exit",
			Desc: "Exit the application",
			Func: func(c *ishell.Context) {
				c.Println("Goodbye!")
				s.shell.Stop()
			},
		},
	}

	// help lists the other command sets, so it is appended after they exist.
	s.commonCommands = append(s.commonCommands, Command{
		Name: "help",
		Desc: "List available commands",
		Func: func(c *ishell.Context) {
			c.Println("Available commands:")
			commands := s.guestCommands
			if s.loggedIn {
				commands = s.userCommands
			}
			for _, command := range append(commands, s.commonCommands...) {
				c.Println("  |-- '" + command.Name + "' : " + command.Desc)
			}
			c.Println()
		},
	})

	return s
}

// addCommands adds the given commands to the shell.
func addCommands(shell *ishell.Shell, commands []Command) {
	for _, command := range commands {
		shell.AddCmd(&ishell.Cmd{
			Name: command.Name,
			Help: command.Desc,
			Func: command.Func,
		})
	}
}

func deleteCommands(shell *ishell.Shell, commands []Command) {
	for _, command := range commands {
		shell.DeleteCmd(command.Name)
	}
}

func (s *Shell) switchToUser() {
	s.loggedIn = true
	deleteCommands(s.shell, s.guestCommands)
	addCommands(s.shell, s.userCommands)
}

func (s *Shell) switchToGuest() {
	s.loggedIn = false
	s.last = nil
	deleteCommands(s.shell, s.userCommands)
	addCommands(s.shell, s.guestCommands)
}

// fail prints err. A lost session sends the user back to the guest commands.
func (s *Shell) fail(err error) {
	if errors.Is(err, client.ErrNotLoggedIn) {
		utils.PrintError("your session has expired, please log in again")
		if s.loggedIn {
			s.switchToGuest()
		}
		return
	}
	utils.PrintError(err.Error())
}

// pick resolves the task number in the first argument against the last listing.
func (s *Shell) pick(c *ishell.Context) (*models.Task, bool) {
	if len(c.Args) != 1 {
		utils.PrintError("expected one task number, run 'list' first")
		return nil, false
	}
	n, err := strconv.Atoi(c.Args[0])
	if err != nil || n < 1 || n > len(s.last) {
		utils.PrintError(fmt.Sprintf("no task number %s in the last listing", c.Args[0]))
		return nil, false
	}
	return &s.last[n-1], true
}

func readUrgency(c *ishell.Context, current models.Urgency) models.Urgency {
	options := make([]string, len(models.Urgencies))
	selected := 0
	for i, u := range models.Urgencies {
		options[i] = string(u)
		if u == current {
			selected = i
		}
	}
	if choice := c.MultiChoice(options, "Urgency:"); choice >= 0 {
		selected = choice
	}
	return models.Urgencies[selected]
}

func (s *Shell) login(c *ishell.Context) {
	c.Print("Enter Passphrase: ")
	passphrase := c.ReadPassword()
	user, err := s.api.Login(passphrase)
	if err != nil {
		s.fail(err)
		return
	}
	s.switchToUser()
	c.Println(titleStyle.Render("Welcome back!"))
	c.Println(formatUser(user))
	if !user.CompletedOnboarding {
		c.Println(mutedStyle.Render("New here? Run 'onboard' to pick a nickname and theme."))
	}
}

func (s *Shell) logout(c *ishell.Context) {
	if err := s.api.Logout(); err != nil {
		s.fail(err)
		return
	}
	s.switchToGuest()
	c.Println("You have been signed out.")
}

func (s *Shell) add(c *ishell.Context) {
	in := engine.CreateTaskInput{Urgency: models.UrgencyDelayed}
	if len(c.Args) > 0 {
		in.Urgency = models.Urgency(strings.ToLower(c.Args[0]))
	} else {
		in.Urgency = readUrgency(c, in.Urgency)
	}

	c.Print("Title: ")
	in.Title = c.ReadLine()
	c.Print("Description (optional): ")
	in.Description = c.ReadLine()

	task, err := s.api.CreateTask(in)
	if err != nil {
		s.fail(err)
		return
	}
	c.Println(goodStyle.Render("Added") + " " + formatUrgency(task.Urgency) + " " + task.Title)
}

func (s *Shell) list(completed bool) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		tasks, err := s.api.ListTasks(completed)
		if err != nil {
			s.fail(err)
			return
		}
		s.last = tasks
		c.Println(formatTaskList(tasks))
	}
}

func (s *Shell) setCompleted(completed bool) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		task, ok := s.pick(c)
		if !ok {
			return
		}
		complete := s.api.UncompleteTask
		if completed {
			complete = s.api.CompleteTask
		}
		result, err := complete(task.ID)
		if err != nil {
			s.fail(err)
			return
		}
		s.last = nil
		c.Println(formatCompletion(result))
	}
}

func (s *Shell) edit(c *ishell.Context) {
	task, ok := s.pick(c)
	if !ok {
		return
	}

	var patch engine.TaskPatch
	c.Printf("Title [%s]: ", task.Title)
	if title := c.ReadLine(); strings.TrimSpace(title) != "" {
		patch.Title = &title
	}
	c.Printf("Description [%s]: ", task.Description)
	if description := c.ReadLine(); description != "" {
		patch.Description = &description
	}
	if urgency := readUrgency(c, task.Urgency); urgency != task.Urgency {
		patch.Urgency = &urgency
	}

	updated, err := s.api.UpdateTask(task.ID, patch)
	if err != nil {
		s.fail(err)
		return
	}
	s.last = nil
	c.Println(goodStyle.Render("Updated") + " " + formatUrgency(updated.Urgency) + " " + updated.Title)
}

func (s *Shell) remove(c *ishell.Context) {
	task, ok := s.pick(c)
	if !ok {
		return
	}
	c.Printf("Delete '%s'? (yes/no): ", task.Title)
	if strings.ToLower(strings.TrimSpace(c.ReadLine())) != "yes" {
		c.Println("Kept.")
		return
	}
	if err := s.api.DeleteTask(task.ID); err != nil {
		s.fail(err)
		return
	}
	s.last = nil
	c.Println("Deleted.")
}

func (s *Shell) stats(c *ishell.Context) {
	user, err := s.api.User()
	if err != nil {
		s.fail(err)
		return
	}
	stats, err := s.api.Stats()
	if err != nil {
		s.fail(err)
		return
	}
	daily, err := s.api.DailyStats(dailyStatsDays)
	if err != nil {
		s.fail(err)
		return
	}
	c.Println(formatStats(user, stats, daily))
}

func (s *Shell) achievements(c *ishell.Context) {
	achievements, err := s.api.Achievements()
	if err != nil {
		s.fail(err)
		return
	}
	c.Println(formatAchievements(achievements))
}

func (s *Shell) theme(c *ishell.Context) {
	if len(c.Args) != 1 {
		utils.PrintError("usage: theme <light|dark|system>")
		return
	}
	user, err := s.api.UpdateTheme(models.Theme(strings.ToLower(c.Args[0])))
	if err != nil {
		s.fail(err)
		return
	}
	c.Println("Theme set to " + headStyle.Render(string(user.Theme)) + ".")
}

func (s *Shell) onboard(c *ishell.Context) {
	var in engine.OnboardingInput
	c.Print("Nickname (optional): ")
	in.Nickname = strings.TrimSpace(c.ReadLine())

	themes := []models.Theme{models.ThemeSystem, models.ThemeLight, models.ThemeDark}
	options := make([]string, len(themes))
	for i, t := range themes {
		options[i] = string(t)
	}
	if choice := c.MultiChoice(options, "Theme:"); choice >= 0 {
		in.Theme = themes[choice]
	}

	user, err := s.api.CompleteOnboarding(in)
	if err != nil {
		s.fail(err)
		return
	}
	c.Println(titleStyle.Render("You're all set!"))
	c.Println(formatUser(user))
}

func (s *Shell) toasts(c *ishell.Context) {
	toasts, err := s.api.Notifications()
	if err != nil {
		s.fail(err)
		return
	}
	c.Println(formatToasts(toasts))
}

// Run prints the banner and runs the shell until the user exits.
func (s *Shell) Run() {
	s.shell.Println()
	figure.NewFigure("TaskVibe", "basic", true).Print()
	s.shell.Println("Welcome to TaskVibe -- level up by getting things done. Type 'help' to see a list of commands.")

	addCommands(s.shell, s.commonCommands)
	if s.api.IsLoggedIn() {
		s.loggedIn = true
		addCommands(s.shell, s.userCommands)
	} else {
		addCommands(s.shell, s.guestCommands)
	}

	s.shell.Run()
}
