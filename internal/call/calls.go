package call

import (
	"context"
	"errors"
	"fmt"
)

// Call is one of the two call variants a Controller can run. The set is
// closed: GenerateCall and InterviewCall.
type Call interface {
	// validate checks preconditions before any state change.
	validate() error
	// start runs the connection phase after the controller entered Connecting.
	start(ctx context.Context, c *Controller) error
	// hangUp tears down whatever start opened. It runs on every transition
	// into Finished and must not block.
	hangUp(c *Controller)
	// finish runs the follow-up once the call reached Finished.
	finish(ctx context.Context, c *Controller, transcript []Utterance)
}

// GenerateCall asks the generation endpoint for a new question set. It never
// opens a voice session: a successful request moves straight to Finished.
type GenerateCall struct {
	Spec InterviewSpec
}

var _ Call = GenerateCall{}

func (g GenerateCall) validate() error {
	return g.Spec.Validate()
}

func (g GenerateCall) start(ctx context.Context, c *Controller) error {
	if c.opts.Generator == nil {
		return c.fail(errors.New("no generator configured"))
	}

	c.logger.Info("Requesting interview generation",
		"owner_id", g.Spec.OwnerID,
		"role", g.Spec.Role,
		"amount", g.Spec.QuestionCount,
	)
	if err := c.opts.Generator.Generate(ctx, g.Spec); err != nil {
		c.logger.Error("Failed to generate interview", "error", err, "owner_id", g.Spec.OwnerID)
		return c.fail(fmt.Errorf("generate interview: %w", err))
	}

	f, ok := c.markFinished("generated")
	if !ok {
		// Disconnected while the request was in flight.
		return nil
	}
	c.logger.Info("Interview generated", "owner_id", g.Spec.OwnerID)
	c.followUp(f)
	c.navigate(PathHome)
	return nil
}

func (g GenerateCall) hangUp(*Controller) {}

func (g GenerateCall) finish(context.Context, *Controller, []Utterance) {}

// InterviewCall conducts a live voice interview over a pre-supplied question set.
type InterviewCall struct {
	Interview InterviewRecord
	UserName  string
}

var _ Call = InterviewCall{}

func (i InterviewCall) validate() error {
	return nil
}

// Variables returns the template variables passed to the voice session.
func (i InterviewCall) Variables() map[string]any {
	vars := map[string]any{
		"questions": FormatQuestions(i.Interview.Questions),
	}
	if i.UserName != "" {
		vars["username"] = i.UserName
	}
	return vars
}

func (i InterviewCall) start(ctx context.Context, c *Controller) error {
	if c.opts.Voice == nil {
		return c.fail(errors.New("no voice session configured"))
	}
	if len(i.Interview.Questions) == 0 {
		c.logger.Warn("No questions provided for interview call", "interview_id", i.Interview.ID)
	}

	if !c.subscribe() {
		// Disconnected before the session was dialed.
		return nil
	}
	c.logger.Info("Starting interview call", "interview_id", i.Interview.ID, "questions", len(i.Interview.Questions))
	if err := c.opts.Voice.Start(ctx, c.opts.AssistantID, i.Variables()); err != nil {
		c.logger.Error("Error starting voice call for interview", "error", err, "interview_id", i.Interview.ID)
		return c.fail(fmt.Errorf("start voice session: %w", err))
	}
	if c.State() == StateFinished {
		// Disconnected while the session was dialing.
		i.hangUp(c)
	}
	return nil
}

func (i InterviewCall) hangUp(c *Controller) {
	voice := c.opts.Voice
	if voice == nil {
		return
	}
	go func() {
		if err := voice.Stop(); err != nil {
			c.logger.Warn("Failed to stop voice session", "error", err, "interview_id", i.Interview.ID)
		}
	}()
}

func (i InterviewCall) finish(ctx context.Context, c *Controller, transcript []Utterance) {
	if len(transcript) == 0 {
		c.logger.Info("Call finished without transcript", "interview_id", i.Interview.ID)
		c.navigate(PathHome)
		return
	}
	if i.Interview.ID == "" || i.Interview.OwnerID == "" || c.opts.Feedback == nil {
		c.logger.Error("Missing interview id, owner id or feedback service for feedback generation",
			"interview_id", i.Interview.ID,
			"owner_id", i.Interview.OwnerID,
		)
		c.navigate(PathHome)
		return
	}

	res, err := c.opts.Feedback.CreateFeedback(ctx, FeedbackRequest{
		InterviewID: i.Interview.ID,
		UserID:      i.Interview.OwnerID,
		Transcript:  transcript,
		FeedbackID:  i.Interview.FeedbackID,
	})
	if err != nil || !res.Success || res.FeedbackID == "" {
		c.logger.Error("Error saving feedback", "error", err, "interview_id", i.Interview.ID)
		c.navigate(PathHome)
		return
	}

	c.logger.Info("Feedback saved", "interview_id", i.Interview.ID, "feedback_id", res.FeedbackID)
	c.navigate(FeedbackPath(i.Interview.ID))
}
