package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/multiversx/mx-chain-parallel-executor-go/data"
)

func TestNewScheduler(t *testing.T) {
	t.Parallel()

	t.Run("negative block size", func(t *testing.T) {
		t.Parallel()

		s, err := NewScheduler(ArgsScheduler{BlockSize: -1})
		require.ErrorIs(t, err, ErrInvalidBlockSize)
		require.Nil(t, s)
	})

	t.Run("empty block is done from the start", func(t *testing.T) {
		t.Parallel()

		s, err := NewScheduler(ArgsScheduler{BlockSize: 0})
		require.NoError(t, err)
		require.True(t, s.Done())
		require.Nil(t, s.NextTask())
	})
}

func TestBlockScheduler_NextTask(t *testing.T) {
	t.Parallel()

	t.Run("hands out first executions in ascending order", func(t *testing.T) {
		t.Parallel()

		s, _ := NewScheduler(ArgsScheduler{BlockSize: 3})
		for i := 0; i < 3; i++ {
			task := s.NextTask()
			require.NotNil(t, task)
			require.Equal(t, data.TaskExecute, task.Kind)
			require.Equal(t, data.Version{TxIndex: i, Incarnation: 0}, task.Version)
		}

		require.Nil(t, s.NextTask())
	})

	t.Run("falls through to execution when the validation candidate is not executed", func(t *testing.T) {
		t.Parallel()

		s, _ := NewScheduler(ArgsScheduler{BlockSize: 2})
		first := s.NextTask()
		require.Equal(t, data.Version{TxIndex: 0, Incarnation: 0}, first.Version)

		// transaction 0 is still executing, so it cannot be validated yet; the
		// worker must get the next execution instead of going idle
		task := s.NextTask()
		require.NotNil(t, task)
		require.Equal(t, data.TaskExecute, task.Kind)
		require.Equal(t, data.Version{TxIndex: 1, Incarnation: 0}, task.Version)
	})

	t.Run("prefers validation once executions finished", func(t *testing.T) {
		t.Parallel()

		s, _ := NewScheduler(ArgsScheduler{BlockSize: 2})
		first := s.NextTask()
		second := s.NextTask()
		require.Nil(t, s.FinishExecution(first.Version, true))
		require.Nil(t, s.FinishExecution(second.Version, true))

		task := s.NextTask()
		require.NotNil(t, task)
		require.Equal(t, data.TaskValidate, task.Kind)
		require.Equal(t, 0, task.Version.TxIndex)
	})
}

func TestBlockScheduler_CommitFlow(t *testing.T) {
	t.Parallel()

	s, _ := NewScheduler(ArgsScheduler{BlockSize: 3})

	versions := make([]data.Version, 3)
	for i := 0; i < 3; i++ {
		task := s.NextTask()
		versions[i] = task.Version
	}
	for i := 0; i < 3; i++ {
		require.Nil(t, s.FinishExecution(versions[i], true))
	}

	committed := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		task := s.NextTask()
		require.Equal(t, data.TaskValidate, task.Kind)

		epoch := s.ValidationEpoch(task.Version.TxIndex)
		committed = append(committed, s.MarkValidated(task.Version, epoch)...)
		require.Nil(t, s.FinishValidation(task.Version.TxIndex, false))
	}

	require.Equal(t, []int{0, 1, 2}, committed)
	require.True(t, s.Done())
	for i := 0; i < 3; i++ {
		require.True(t, s.IsTxCommitted(i))
	}
	require.Equal(t, data.FallbackReasonNone, s.FallbackReason())
}

func TestBlockScheduler_CommitWaitsForLowerTransactions(t *testing.T) {
	t.Parallel()

	s, _ := NewScheduler(ArgsScheduler{BlockSize: 2})
	first := s.NextTask()
	second := s.NextTask()
	require.Nil(t, s.FinishExecution(first.Version, true))
	require.Nil(t, s.FinishExecution(second.Version, true))

	// validating the higher transaction first must not commit it
	epoch := s.ValidationEpoch(1)
	require.Empty(t, s.MarkValidated(second.Version, epoch))
	require.False(t, s.IsTxCommitted(1))

	epoch = s.ValidationEpoch(0)
	committed := s.MarkValidated(first.Version, epoch)
	require.Equal(t, []int{0, 1}, committed)
	require.True(t, s.Done())
}

func TestBlockScheduler_ValidationAbort(t *testing.T) {
	t.Parallel()

	t.Run("only one concurrent validator wins the abort", func(t *testing.T) {
		t.Parallel()

		s, _ := NewScheduler(ArgsScheduler{BlockSize: 2})
		first := s.NextTask()
		_ = s.NextTask()
		require.Nil(t, s.FinishExecution(first.Version, true))

		require.True(t, s.TryValidationAbort(first.Version))
		require.False(t, s.TryValidationAbort(first.Version))
	})

	t.Run("aborted transaction is re-executed with the next incarnation", func(t *testing.T) {
		t.Parallel()

		s, _ := NewScheduler(ArgsScheduler{BlockSize: 2})
		first := s.NextTask()
		_ = s.NextTask()
		require.Nil(t, s.FinishExecution(first.Version, true))

		require.True(t, s.TryValidationAbort(first.Version))
		task := s.FinishValidation(first.Version.TxIndex, true)
		require.NotNil(t, task)
		require.Equal(t, data.TaskExecute, task.Kind)
		require.Equal(t, data.Version{TxIndex: 0, Incarnation: 1}, task.Version)
	})

	t.Run("stale incarnation cannot abort", func(t *testing.T) {
		t.Parallel()

		s, _ := NewScheduler(ArgsScheduler{BlockSize: 2})
		first := s.NextTask()
		_ = s.NextTask()
		require.Nil(t, s.FinishExecution(first.Version, true))

		require.True(t, s.TryValidationAbort(first.Version))
		task := s.FinishValidation(first.Version.TxIndex, true)
		require.Nil(t, s.FinishExecution(task.Version, true))

		require.False(t, s.TryValidationAbort(first.Version))
	})
}

func TestBlockScheduler_StaleValidationEpochIsRejected(t *testing.T) {
	t.Parallel()

	s, _ := NewScheduler(ArgsScheduler{BlockSize: 2})
	first := s.NextTask()
	second := s.NextTask()
	require.Nil(t, s.FinishExecution(first.Version, true))
	require.Nil(t, s.FinishExecution(second.Version, true))

	epoch := s.ValidationEpoch(1)

	// a lower transaction wrote a new key, scheduling re-validation from it
	s.DeferValidation(0)

	require.Empty(t, s.MarkValidated(second.Version, epoch))
	require.False(t, s.IsTxCommitted(1))

	// with the fresh epoch the same validation result is accepted
	epoch = s.ValidationEpoch(1)
	require.Empty(t, s.MarkValidated(second.Version, epoch))

	committed := s.MarkValidated(first.Version, s.ValidationEpoch(0))
	require.Equal(t, []int{0, 1}, committed)
}

func TestBlockScheduler_Dependencies(t *testing.T) {
	t.Parallel()

	t.Run("suspends on an in-flight producer and resumes after it finishes", func(t *testing.T) {
		t.Parallel()

		s, _ := NewScheduler(ArgsScheduler{BlockSize: 2})
		first := s.NextTask()
		second := s.NextTask()

		registered := s.AddDependency(second.Version.TxIndex, first.Version.TxIndex)
		require.True(t, registered)

		// while suspended, the transaction is not handed out again
		require.Nil(t, s.NextTask())

		require.Nil(t, s.FinishExecution(first.Version, true))

		// validation of the finished producer comes first, then the resumed execution
		task := s.NextTask()
		require.NotNil(t, task)
		require.Equal(t, data.TaskValidate, task.Kind)
		require.Equal(t, first.Version, task.Version)

		task = s.NextTask()
		require.NotNil(t, task)
		require.Equal(t, data.TaskExecute, task.Kind)
		require.Equal(t, second.Version, task.Version)
	})

	t.Run("already settled producer rejects the dependency", func(t *testing.T) {
		t.Parallel()

		s, _ := NewScheduler(ArgsScheduler{BlockSize: 2})
		first := s.NextTask()
		_ = s.NextTask()
		require.Nil(t, s.FinishExecution(first.Version, true))

		require.False(t, s.AddDependency(1, 0))
	})
}

func TestBlockScheduler_Halt(t *testing.T) {
	t.Parallel()

	t.Run("stops handing out work", func(t *testing.T) {
		t.Parallel()

		s, _ := NewScheduler(ArgsScheduler{BlockSize: 3})
		s.Halt(data.FallbackReasonModulePathHazard)

		require.True(t, s.Done())
		require.Nil(t, s.NextTask())
		require.Equal(t, data.FallbackReasonModulePathHazard, s.FallbackReason())
	})

	t.Run("first reason wins", func(t *testing.T) {
		t.Parallel()

		s, _ := NewScheduler(ArgsScheduler{BlockSize: 3})
		s.Halt(data.FallbackReasonTooManyRetries)
		s.Halt(data.FallbackReasonModulePathHazard)

		require.Equal(t, data.FallbackReasonTooManyRetries, s.FallbackReason())
	})
}

func TestBlockScheduler_IncarnationsCap(t *testing.T) {
	t.Parallel()

	s, _ := NewScheduler(ArgsScheduler{BlockSize: 2, MaxIncarnations: 1})
	first := s.NextTask()
	_ = s.NextTask()

	require.Nil(t, s.FinishExecution(first.Version, true))
	require.True(t, s.TryValidationAbort(first.Version))
	task := s.FinishValidation(first.Version.TxIndex, true)
	require.Equal(t, uint32(1), task.Version.Incarnation)
	require.Equal(t, data.FallbackReasonNone, s.FallbackReason())

	require.Nil(t, s.FinishExecution(task.Version, true))
	require.True(t, s.TryValidationAbort(task.Version))
	_ = s.FinishValidation(task.Version.TxIndex, true)

	require.True(t, s.Done())
	require.Equal(t, data.FallbackReasonTooManyRetries, s.FallbackReason())
}

func TestBlockScheduler_FinishExecutionPanicsWhenNotExecuting(t *testing.T) {
	t.Parallel()

	s, _ := NewScheduler(ArgsScheduler{BlockSize: 2})
	require.Panics(t, func() {
		_ = s.FinishExecution(data.Version{TxIndex: 0, Incarnation: 0}, false)
	})
}
