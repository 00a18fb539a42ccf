package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var fieldValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate ensures the configuration is usable. Per-field shape checks
// (required, positive, enum membership) run first via struct tags;
// cross-field business rules that a tag cannot express run second.
func (c *Config) Validate() error {
	if err := fieldValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("config: %s", verrs[0].Namespace()+" failed "+verrs[0].Tag())
		}
		return fmt.Errorf("config: %w", err)
	}

	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Pipeline.Stage7BatchSize > c.Pipeline.MaxParallelAPI*10 {
		return errors.New("pipeline.stage7_batch_size is unreasonably large relative to pipeline.max_parallel_api")
	}
	if c.LLM.RetryMax > 30 {
		return errors.New("llm.retry_max above 30 attempts is almost certainly a misconfiguration")
	}
	return nil
}
