package framework

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/flashbots/simple-storage/contracts"
)

// Artifact is a compiled contract: its ABI and creation bytecode.
type Artifact struct {
	Name string
	Abi  *abi.ABI
	Code []byte
}

type artifactObj struct {
	Abi      json.RawMessage `json:"abi"`
	Bytecode struct {
		Object string `json:"object"`
	} `json:"bytecode"`
}

// ReadArtifact reads a bundled artifact, e.g. "SimpleStorage.sol/SimpleStorage.json".
func ReadArtifact(name string) (*Artifact, error) {
	return ReadArtifactFS(contracts.Artifacts, path.Join("out", name))
}

// ReadArtifactFS reads a Foundry-style artifact from fsys.
func ReadArtifactFS(fsys fs.FS, name string) (*Artifact, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrArtifactRead, name, err)
	}

	var obj artifactObj
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrArtifactRead, name, err)
	}

	abiObj, err := abi.JSON(bytes.NewReader(obj.Abi))
	if err != nil {
		return nil, fmt.Errorf("%w %s: invalid abi: %w", ErrArtifactRead, name, err)
	}

	code := common.FromHex(obj.Bytecode.Object)
	if len(code) == 0 {
		return nil, fmt.Errorf("%w %s: empty bytecode", ErrArtifactRead, name)
	}

	return &Artifact{
		Name: strings.TrimSuffix(path.Base(name), ".json"),
		Abi:  &abiObj,
		Code: code,
	}, nil
}
