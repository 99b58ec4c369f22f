// Package supervisor controls a target's process group through
// supervisorctl on the remote host.
package supervisor

import (
	"context"
	"fmt"

	"fdep/internal/console"
	"fdep/internal/remote"
	"fdep/internal/target"
)

// Ctl builds "supervisorctl ACTION GROUP:*".
func Ctl(action, group string) string {
	return fmt.Sprintf("supervisorctl %s %s:*", action, group)
}

// Signal builds the command that sends signal to one supervised program.
func Signal(group, program, signal string) string {
	return fmt.Sprintf("supervisorctl pid %s:%s | xargs kill %s", group, program, signal)
}

// Services returns the system services whose status is reported for an
// engine. An unknown engine contributes no database service.
func Services(engine string) []string {
	services := []string{"nginx", "supervisor"}
	switch engine {
	case "postgresql", "mysql":
		services = append(services, engine)
	}
	return services
}

// Controller runs process control tasks for one target on one host.
type Controller struct {
	Session *remote.Session
	Console *console.Console
	Target  *target.Target
}

func (c *Controller) group() string {
	return c.Target.SupervisorProgram
}

func (c *Controller) program(suffix string) string {
	return c.Target.ProjectName + suffix
}

// Supervisorctl applies action to every program of the group.
func (c *Controller) Supervisorctl(ctx context.Context, action string) error {
	if err := c.Session.Run(ctx, Ctl(action, c.group())); err != nil {
		return fmt.Errorf("supervisorctl %s: %w", action, err)
	}
	return nil
}

func (c *Controller) ctl(ctx context.Context, action, heading string) error {
	c.Console.Info("%s", heading)
	if err := c.Supervisorctl(ctx, action); err != nil {
		return err
	}
	if err := c.Status(ctx); err != nil {
		return err
	}
	c.Console.Done()
	return nil
}

// Start starts the application group.
func (c *Controller) Start(ctx context.Context) error {
	return c.ctl(ctx, "start", "Starting application group")
}

// Stop stops the application group.
func (c *Controller) Stop(ctx context.Context) error {
	return c.ctl(ctx, "stop", "Stopping application group")
}

// Restart restarts the whole application group.
func (c *Controller) Restart(ctx context.Context) error {
	return c.ctl(ctx, "restart", "Restarting application group")
}

// GracefulRestart sends HUP to gunicorn and the celery processes and
// restarts huey through supervisor.
func (c *Controller) GracefulRestart(ctx context.Context) error {
	c.Console.Info("Restarting Gunicorn with HUP signal")
	if err := c.Session.Run(ctx, Signal(c.group(), c.program("_gunicorn"), "-s HUP")); err != nil {
		return err
	}

	if c.Target.CeleryEnabled {
		c.Console.Info("Restarting Celery with HUP signal")
		if len(c.Target.CeleryWorkers) == 0 {
			c.Console.Warn("Restarting default worker")
		}
		for i, worker := range c.Target.Workers() {
			if len(c.Target.CeleryWorkers) > 0 {
				c.Console.Warn("Restarting worker `%s`", c.Target.CeleryWorkers[i])
			}
			if err := c.Session.Run(ctx, Signal(c.group(), worker, "-s HUP")); err != nil {
				return err
			}
		}

		if c.Target.CelerybeatEnabled {
			if err := c.Session.Run(ctx, Signal(c.group(), c.program("_celerybeat"), "-s HUP")); err != nil {
				return err
			}
		}
	}

	if c.Target.HueyEnabled {
		if err := c.Session.Run(ctx, fmt.Sprintf("supervisorctl restart %s:%s", c.group(), c.program("_huey"))); err != nil {
			return err
		}
	}

	c.Console.Done()
	return nil
}

// Kill sends SIGKILL to gunicorn and the celery workers. Failures are only
// reported.
func (c *Controller) Kill(ctx context.Context) error {
	c.Console.Info("Killing Gunicorn")
	if err := c.Session.RunWarn(ctx, Signal(c.group(), c.program("_gunicorn"), "-9")); err != nil {
		return err
	}

	if c.Target.CeleryEnabled {
		c.Console.Info("Killing Celery")
		if len(c.Target.CeleryWorkers) == 0 {
			c.Console.Warn("Killing default worker")
		}
		for _, worker := range c.Target.Workers() {
			if err := c.Session.RunWarn(ctx, Signal(c.group(), worker, "-9")); err != nil {
				return err
			}
		}
	}

	c.Console.Done()
	return nil
}

// KillCelery kills every "celery worker" process on the host.
func (c *Controller) KillCelery(ctx context.Context) error {
	c.Console.Info("Killing Celery")
	if err := c.Session.Run(ctx, `ps auxww | grep 'celery worker' | awk '{print $2}' | xargs kill -9`); err != nil {
		return err
	}
	c.Console.Done()
	return nil
}

// Status prints the group's supervisor status, the state of the system
// services and, when celery is enabled, the celery worker status.
func (c *Controller) Status(ctx context.Context) error {
	c.Console.Info("Retrieving status")

	if err := c.Session.Run(ctx, fmt.Sprintf("supervisorctl status | grep %q", c.group())); err != nil {
		return fmt.Errorf("supervisor status: %w", err)
	}

	switch c.Target.DBEngine {
	case "postgresql", "mysql":
	default:
		c.Console.Warn("Unsupported database engine %s", c.Target.DBEngine)
	}
	for _, service := range Services(c.Target.DBEngine) {
		if err := c.Session.Run(ctx, fmt.Sprintf("service %s status", service)); err != nil {
			return err
		}
	}

	if c.Target.CeleryEnabled {
		if err := c.Session.VenvWarn(ctx, "celery --workdir=src/ --app=main status"); err != nil {
			return err
		}
	}

	c.Console.Done()
	return nil
}
