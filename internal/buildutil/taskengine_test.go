package buildutil

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
)

func TestEngine_Run_ProcessesAllTasks(t *testing.T) {
	tasks := make([]int, 100)
	for i := range tasks {
		tasks[i] = i
	}

	var mu sync.Mutex
	var seen []int

	e := &Engine[int, struct{}, int]{
		Workers:          4,
		NewWorkerContext: func() struct{} { return struct{}{} },
		WorkerFunc: func(ctx context.Context, wc struct{}, task Task[int]) (int, error) {
			return task.Item * 2, nil
		},
		OutputFunc: func(out Output[int]) error {
			mu.Lock()
			seen = append(seen, out.Result)
			mu.Unlock()
			return nil
		},
	}

	if err := e.Run(context.Background(), tasks); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(seen) != len(tasks) {
		t.Fatalf("got %d outputs, want %d", len(seen), len(tasks))
	}
	sort.Ints(seen)
	for i, v := range seen {
		if v != i*2 {
			t.Errorf("seen[%d] = %d, want %d", i, v, i*2)
		}
	}
}

func TestEngine_Run_WorkerErrorPropagates(t *testing.T) {
	tasks := []int{1, 2, 3, 4, 5}
	wantErr := errors.New("boom")

	e := &Engine[int, struct{}, int]{
		Workers:          2,
		NewWorkerContext: func() struct{} { return struct{}{} },
		WorkerFunc: func(ctx context.Context, wc struct{}, task Task[int]) (int, error) {
			if task.Item == 3 {
				return 0, wantErr
			}
			return task.Item, nil
		},
		OutputFunc: func(out Output[int]) error { return nil },
	}

	err := e.Run(context.Background(), tasks)
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestEngine_Run_PerWorkerContextIsolation(t *testing.T) {
	tasks := make([]int, 20)
	var mu sync.Mutex
	contextIDs := make(map[*int]bool)

	counter := 0
	e := &Engine[int, *int, int]{
		Workers: 3,
		NewWorkerContext: func() *int {
			mu.Lock()
			counter++
			id := counter
			mu.Unlock()
			return &id
		},
		WorkerFunc: func(ctx context.Context, wc *int, task Task[int]) (int, error) {
			mu.Lock()
			contextIDs[wc] = true
			mu.Unlock()
			return *wc, nil
		},
		OutputFunc: func(out Output[int]) error { return nil },
	}

	if err := e.Run(context.Background(), tasks); err != nil {
		t.Fatal(err)
	}
	if len(contextIDs) == 0 || len(contextIDs) > 3 {
		t.Errorf("expected up to 3 distinct worker contexts, got %d", len(contextIDs))
	}
}

func TestDefaultWorkerCount_IsPositive(t *testing.T) {
	if DefaultWorkerCount() < 1 {
		t.Error("DefaultWorkerCount() should be at least 1")
	}
}
