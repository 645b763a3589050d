// internal/workers/ticket-response/respond-ticket/job.go
package respondticket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "ticket-responder/internal/common/errors"
	"ticket-responder/pkg/registry"
)

// Handle runs the pipeline for a workflow job and completes it with the run summary.
// Search failures fail the job with retries; configuration errors throw a BPMN error.
func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	input, err := h.parseInput(job)
	if err != nil {
		h.errors.HandleJobError(context.Background(), client, job, err)
		return err
	}

	ctx, cancel := withTimeout(context.Background(), h.config.JobTimeout)
	defer cancel()

	summary, err := h.Run(ctx, input)
	if err != nil {
		h.errors.HandleJobError(context.Background(), client, job, err)
		return err
	}

	return h.completeJob(client, job, &Output{
		RunID:     summary.RunID,
		Processed: summary.Processed,
		Published: summary.Published,
		Failed:    summary.Failed,
		Summary:   summary,
	})
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	var input Input
	if job.Variables == "" {
		return &input, nil
	}
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, apperrors.NewConfigurationInvalidError(fmt.Sprintf("parse job variables: %v", err))
	}
	if err := registry.ValidateVariables(TaskType, []byte(job.Variables)); err != nil {
		return nil, apperrors.NewConfigurationInvalidError(err.Error())
	}
	return &input, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return err
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return err
	}
	return nil
}
