package memory_test

import (
	"testing"

	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/ports/tests"
)

func TestMemoryStore_Contract(t *testing.T) {
	tests.RunStateStoreContract(t, memory.NewStore())
}

func TestFlowRepository_Contract(t *testing.T) {
	repo := memory.NewFlowRepository()
	repo.Put(sampleFlow("bot-1"))
	tests.RunFlowRepositoryContract(t, repo, "bot-1")
}

func TestConversationLog_Contract(t *testing.T) {
	tests.RunConversationLogContract(t, memory.NewConversationLog())
}

func TestKnowledgeStore_Contract(t *testing.T) {
	tests.RunKnowledgeStoreContract(t, memory.NewKnowledgeStore())
}
