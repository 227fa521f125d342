//go:build onnx
// +build onnx

package model

import (
	"context"
	"fmt"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

type inputRole int

const (
	roleIDs inputRole = iota
	roleMask
	roleTokenType
	rolePosition
)

// onnxModel drives a masked or causal LM graph that outputs logits
// [batch, seq, vocab]. The session is opened lazily on first Forward and
// shared read-only afterwards; ORT sessions are safe for concurrent Run.
// Forward holds mu for reading while it runs, so Close waits for in-flight
// calls and later calls fail with ErrModelClosed.
type onnxModel struct {
	kind        Kind
	modelPath   string
	opts        RuntimeOptions
	mu          sync.RWMutex
	closed      bool
	session     *ort.DynamicAdvancedSession
	inputNames  []string
	inputRoles  []inputRole
	outputNames []string
}

func newONNXModel(kind Kind, modelPath string, opts RuntimeOptions) LanguageModel {
	return &onnxModel{kind: kind, modelPath: modelPath, opts: opts}
}

func classifyInput(name string) (inputRole, bool) {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "input_ids") || n == "ids":
		return roleIDs, true
	case strings.Contains(n, "attention_mask") || n == "mask":
		return roleMask, true
	case strings.Contains(n, "token_type"):
		return roleTokenType, true
	case strings.Contains(n, "position_ids"):
		return rolePosition, true
	}
	return 0, false
}

func (m *onnxModel) ensureSession() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrModelClosed
	}
	if m.session != nil {
		return nil
	}
	if m.modelPath == "" {
		return ErrModelPathRequired
	}
	if err := initRuntime(m.opts); err != nil {
		return err
	}
	// Probe IO
	ins, outs, err := ort.GetInputOutputInfo(m.modelPath)
	if err != nil {
		return fmt.Errorf("get IO info: %w", err)
	}
	var inputNames []string
	var roles []inputRole
	for _, ii := range ins {
		role, ok := classifyInput(ii.Name)
		if !ok {
			return fmt.Errorf("unsupported %s model input %q (exports with past_key_values are not supported)", m.kind, ii.Name)
		}
		inputNames = append(inputNames, ii.Name)
		roles = append(roles, role)
	}
	if len(inputNames) == 0 {
		return fmt.Errorf("could not determine ONNX input names")
	}
	// Prefer an output named logits, else the first float output
	var outputNames []string
	for _, oi := range outs {
		if oi.DataType == ort.TensorElementDataTypeFloat && strings.Contains(strings.ToLower(oi.Name), "logits") {
			outputNames = append(outputNames, oi.Name)
			break
		}
	}
	if len(outputNames) == 0 {
		for _, oi := range outs {
			if oi.DataType == ort.TensorElementDataTypeFloat {
				outputNames = append(outputNames, oi.Name)
				break
			}
		}
	}
	if len(outputNames) == 0 {
		return fmt.Errorf("could not determine ONNX output name")
	}

	opts, err := m.sessionOptions()
	if err != nil {
		return err
	}
	s, err := ort.NewDynamicAdvancedSession(m.modelPath, inputNames, outputNames, opts)
	if opts != nil {
		_ = opts.Destroy()
	}
	if err != nil {
		return fmt.Errorf("create onnx session: %w", err)
	}
	m.session = s
	m.inputNames = inputNames
	m.inputRoles = roles
	m.outputNames = outputNames
	return nil
}

// sessionOptions builds options for the requested EP. nil means ORT defaults.
func (m *onnxModel) sessionOptions() (*ort.SessionOptions, error) {
	ep := m.opts.provider()
	if (ep == "" || ep == "cpu") && m.opts.IntraOpThreads == 0 {
		return nil, nil
	}
	o, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	_ = o.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll)
	_ = o.SetIntraOpNumThreads(m.opts.IntraOpThreads)
	_ = o.SetInterOpNumThreads(0)
	switch ep {
	case "cuda":
		if cu, e := ort.NewCUDAProviderOptions(); e == nil {
			_ = o.AppendExecutionProviderCUDA(cu)
			_ = cu.Destroy()
		}
	case "tensorrt":
		if trt, e := ort.NewTensorRTProviderOptions(); e == nil {
			_ = o.AppendExecutionProviderTensorRT(trt)
			_ = trt.Destroy()
		}
	case "coreml":
		_ = o.AppendExecutionProviderCoreMLV2(map[string]string{})
	case "dml":
		_ = o.AppendExecutionProviderDirectML(m.opts.DeviceID)
	}
	return o, nil
}

func (m *onnxModel) Forward(ctx context.Context, batch *Batch) (*Logits, error) {
	if err := m.ensureSession(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed || m.session == nil {
		return nil, ErrModelClosed
	}
	session := m.session
	if batch.Rows == 0 || batch.Seq == 0 {
		return nil, fmt.Errorf("empty batch")
	}
	shape := ort.NewShape(int64(batch.Rows), int64(batch.Seq))

	inVals := make([]ort.Value, len(m.inputNames))
	for i, role := range m.inputRoles {
		var data []int64
		switch role {
		case roleIDs:
			data = batch.InputIDs
		case roleMask:
			data = batch.AttentionMask
		case roleTokenType:
			data = batch.TokenTypeIDs
		case rolePosition:
			data = make([]int64, batch.Rows*batch.Seq)
			for r := 0; r < batch.Rows; r++ {
				for p := 0; p < batch.Seq; p++ {
					data[r*batch.Seq+p] = int64(p)
				}
			}
		}
		t, err := ort.NewTensor(shape, data)
		if err != nil {
			return nil, fmt.Errorf("%s tensor: %w", m.inputNames[i], err)
		}
		defer t.Destroy()
		inVals[i] = t
	}

	outs := make([]ort.Value, len(m.outputNames))
	if err := session.Run(inVals, outs); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}
	defer func() {
		for _, v := range outs {
			if v != nil {
				v.Destroy()
			}
		}
	}()

	t, ok := outs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output type")
	}
	outShape := t.GetShape()
	if len(outShape) != 3 {
		return nil, fmt.Errorf("unexpected output rank %d", len(outShape))
	}
	data := t.GetData()
	logits := &Logits{
		Rows:  int(outShape[0]),
		Seq:   int(outShape[1]),
		Vocab: int(outShape[2]),
		Data:  make([]float32, len(data)),
	}
	copy(logits.Data, data)
	if err := logits.Check(batch); err != nil {
		return nil, err
	}
	return logits, nil
}

func (m *onnxModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	return err
}
