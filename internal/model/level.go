package model

// Пороги активных клиентов для перехода на следующий уровень.
var levelThresholds = []int{10, 50, 100, 1000}

var levelNames = []string{
	"Débutant",
	"Ambassadeur Reconnu",
	"Ambassadeur Confirmé",
	"Ambassadeur Élite",
	"Maître Ambassadeur",
}

// LevelFor вычисляет уровень амбассадора по числу активных клиентов.
// Уровень не хранится, его пересчитывают при каждом чтении.
func LevelFor(activeClients int) int {
	for i, threshold := range levelThresholds {
		if activeClients < threshold {
			return i + 1
		}
	}
	return len(levelThresholds) + 1
}

// LevelName возвращает название уровня.
func LevelName(level int) string {
	if level < 1 {
		level = 1
	}
	if level > len(levelNames) {
		level = len(levelNames)
	}
	return levelNames[level-1]
}

// ClientsForNextLevel возвращает, сколько активных клиентов не хватает до следующего уровня.
// Для максимального уровня возвращает 0.
func ClientsForNextLevel(activeClients int) int {
	level := LevelFor(activeClients)
	if level > len(levelThresholds) {
		return 0
	}
	return levelThresholds[level-1] - activeClients
}
